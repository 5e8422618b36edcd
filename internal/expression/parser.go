// Package expression parses and resolves collection reference expressions:
// path-like strings naming a concept or mapping, optionally pinned to a
// version. The grammar is the wire format collections are exported and
// imported with, so it must be preserved bit-exactly:
//
//	/{users|orgs}/{ownerId}/sources/{sourceMnemonic}/{concepts|mappings}/{resourceId}/[{versionId}/]
package expression

import (
	"regexp"
	"strings"

	"termcore/pkg/domain"
)

var (
	namespaceRe = regexp.MustCompile(`^[a-zA-Z0-9\-.]+$`)
	conceptIDRe = regexp.MustCompile(`^[a-zA-Z0-9\-._]+$`)
)

// ParsedReference is the structured form of a reference expression.
type ParsedReference struct {
	OwnerKind  domain.OwnerKind
	OwnerID    string
	Source     string
	Type       domain.ReferenceType
	ResourceID string // concept mnemonic, or mapping id
	VersionID  string // empty when no version segment
}

// HasVersion reports whether the expression pinned a version.
func (r ParsedReference) HasVersion() bool { return r.VersionID != "" }

// Owner returns the owner named by the expression.
func (r ParsedReference) Owner() domain.Owner {
	return domain.Owner{Kind: r.OwnerKind, ID: r.OwnerID}
}

// String serializes the reference back to its canonical expression form,
// with a leading and trailing slash and the version segment when present.
func (r ParsedReference) String() string {
	var b strings.Builder
	for _, seg := range []string{string(r.OwnerKind), r.OwnerID, "sources", r.Source, string(r.Type), r.ResourceID} {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if r.VersionID != "" {
		b.WriteByte('/')
		b.WriteString(r.VersionID)
	}
	b.WriteByte('/')
	return b.String()
}

// WithVersion returns a copy pinned to the given version id.
func (r ParsedReference) WithVersion(versionID string) ParsedReference {
	r.VersionID = versionID
	return r
}

// DropVersion strips the version segment from an already-valid expression
// string, returning the six-segment form. Invalid input is returned as is.
func DropVersion(expr string) string {
	parsed, err := Parse(expr)
	if err != nil {
		return expr
	}
	return parsed.WithVersion("").String()
}

// Parse turns an expression into a ParsedReference. It fails with
// domain.ErrInvalidExpression when the path does not match the grammar.
func Parse(expr string) (ParsedReference, error) {
	if strings.TrimSpace(expr) == "" {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "empty expression"}
	}
	if !strings.HasPrefix(expr, "/") {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "must start with /"}
	}
	segments := compact(strings.Split(expr, "/"))
	if len(segments) != 6 && len(segments) != 7 {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "wrong number of path segments"}
	}

	ownerKind := domain.OwnerKind(segments[0])
	if ownerKind != domain.OwnerUser && ownerKind != domain.OwnerOrg {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "owner type must be users or orgs"}
	}
	if segments[2] != "sources" {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "third segment must be sources"}
	}
	refType := domain.ReferenceType(segments[4])
	if refType != domain.ReferenceConcept && refType != domain.ReferenceMapping {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "unsupported resource type " + segments[4]}
	}
	if !namespaceRe.MatchString(segments[1]) || !namespaceRe.MatchString(segments[3]) {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "invalid owner or source mnemonic"}
	}
	if !conceptIDRe.MatchString(segments[5]) {
		return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "invalid resource identifier"}
	}

	parsed := ParsedReference{
		OwnerKind:  ownerKind,
		OwnerID:    segments[1],
		Source:     segments[3],
		Type:       refType,
		ResourceID: segments[5],
	}
	if len(segments) == 7 {
		if !conceptIDRe.MatchString(segments[6]) {
			return ParsedReference{}, domain.ErrInvalidExpression{Expression: expr, Reason: "invalid version identifier"}
		}
		parsed.VersionID = segments[6]
	}
	return parsed, nil
}

func compact(segments []string) []string {
	out := segments[:0]
	for _, s := range segments {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
