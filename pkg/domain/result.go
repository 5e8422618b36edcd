package domain

// Violation reports one failed validation rule. Field names the offending
// payload field ("names", "descriptions", "concept_class", ...); Message is
// one of the rule message constants; Value carries the offending value when
// the rule checks reference-value membership.
type Violation struct {
	Rule      string `json:"rule"`
	Field     string `json:"field"`
	Message   string `json:"message"`
	Value     string `json:"value,omitempty"`
	ConceptID string `json:"concept_id,omitempty"`
}

// Result aggregates validation violations. Rules append rather than
// short-circuit so one submission reports every violated rule at once.
type Result struct {
	Violations []Violation `json:"violations,omitempty"`
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// Add appends a single violation.
func (r *Result) Add(v Violation) {
	r.Violations = append(r.Violations, v)
}

// OK reports whether the result holds no violations.
func (r Result) OK() bool { return len(r.Violations) == 0 }

// ValidationError is returned when a mutation is blocked by violations.
type ValidationError struct {
	Result Result
}

func (e ValidationError) Error() string {
	return "validation failed"
}
