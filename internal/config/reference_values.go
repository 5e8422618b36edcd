// Package config loads the reference-value lists the validation engine
// checks concept attributes against. Values come from a YAML file when one is
// configured, else from built-in defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LookupConceptClasses names the concept classes that hold the reference
// values themselves. Concepts of these classes skip attribute validation so
// the lookup dictionaries can be bootstrapped.
var LookupConceptClasses = []string{
	"Concept Class", "Datatype", "NameType", "DescriptionType", "MapType", "Locale",
}

// ReferenceValues holds the configured attribute vocabularies.
type ReferenceValues struct {
	Classes          []string `yaml:"classes"`
	Datatypes        []string `yaml:"datatypes"`
	NameTypes        []string `yaml:"name_types"`
	DescriptionTypes []string `yaml:"description_types"`
	MapTypes         []string `yaml:"map_types"`
	Locales          []string `yaml:"locales"`
}

// DefaultReferenceValues returns the built-in vocabularies used when no YAML
// file is configured.
func DefaultReferenceValues() ReferenceValues {
	return ReferenceValues{
		Classes: []string{
			"Diagnosis", "Drug", "Test", "Procedure", "Symptom", "Finding",
			"Anatomy", "Question", "Misc", "Symptom/Finding", "Frequency",
			"LabSet", "ConvSet", "MedSet", "Indicator", "Health Care Monitoring Topics",
		},
		Datatypes: []string{
			"None", "Numeric", "Coded", "Text", "Boolean", "Date", "Time",
			"Datetime", "Document", "Rule", "Structured Numeric", "Complex",
		},
		NameTypes: []string{
			"None", "FULLY_SPECIFIED", "Fully Specified", "SHORT", "Short",
			"INDEX_TERM", "Index Term",
		},
		DescriptionTypes: []string{"None", "Definition"},
		MapTypes: []string{
			"SAME-AS", "NARROWER-THAN", "BROADER-THAN", "Q-AND-A",
			"CONCEPT-SET", "ASSOCIATED-WITH",
		},
		Locales: []string{"en", "es", "fr", "sw", "tr", "pt", "ht", "ar"},
	}
}

// LoadReferenceValues reads vocabularies from a YAML file. Lists missing from
// the file fall back to the defaults.
func LoadReferenceValues(path string) (ReferenceValues, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ReferenceValues{}, fmt.Errorf("read reference values: %w", err)
	}
	rv := ReferenceValues{}
	if err := yaml.Unmarshal(data, &rv); err != nil {
		return ReferenceValues{}, fmt.Errorf("parse reference values: %w", err)
	}
	defaults := DefaultReferenceValues()
	if len(rv.Classes) == 0 {
		rv.Classes = defaults.Classes
	}
	if len(rv.Datatypes) == 0 {
		rv.Datatypes = defaults.Datatypes
	}
	if len(rv.NameTypes) == 0 {
		rv.NameTypes = defaults.NameTypes
	}
	if len(rv.DescriptionTypes) == 0 {
		rv.DescriptionTypes = defaults.DescriptionTypes
	}
	if len(rv.MapTypes) == 0 {
		rv.MapTypes = defaults.MapTypes
	}
	if len(rv.Locales) == 0 {
		rv.Locales = defaults.Locales
	}
	return rv, nil
}

// IsLookupClass reports whether the concept class is one of the bootstrap
// lookup classes exempt from attribute validation.
func IsLookupClass(class string) bool {
	return contains(LookupConceptClasses, class)
}

// HasClass reports membership in the configured concept classes.
func (rv ReferenceValues) HasClass(v string) bool { return contains(rv.Classes, v) }

// HasDatatype reports membership in the configured datatypes.
func (rv ReferenceValues) HasDatatype(v string) bool { return contains(rv.Datatypes, orNone(v)) }

// HasNameType reports membership in the configured name types.
func (rv ReferenceValues) HasNameType(v string) bool { return contains(rv.NameTypes, orNone(v)) }

// HasDescriptionType reports membership in the configured description types.
func (rv ReferenceValues) HasDescriptionType(v string) bool {
	return contains(rv.DescriptionTypes, orNone(v))
}

// HasMapType reports membership in the configured map types.
func (rv ReferenceValues) HasMapType(v string) bool { return contains(rv.MapTypes, v) }

// HasLocale reports membership in the configured locales.
func (rv ReferenceValues) HasLocale(v string) bool { return contains(rv.Locales, v) }

func orNone(v string) string {
	if v == "" {
		return "None"
	}
	return v
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
