package expression_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"termcore/internal/expression"
	"termcore/pkg/domain"
)

func TestParseValidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want expression.ParsedReference
	}{
		{
			name: "org concept without version",
			expr: "/orgs/WHO/sources/ICD-10/concepts/A15.1/",
			want: expression.ParsedReference{
				OwnerKind:  domain.OwnerOrg,
				OwnerID:    "WHO",
				Source:     "ICD-10",
				Type:       domain.ReferenceConcept,
				ResourceID: "A15.1",
			},
		},
		{
			name: "user concept with version",
			expr: "/users/jo/sources/Custom/concepts/c1/v2/",
			want: expression.ParsedReference{
				OwnerKind:  domain.OwnerUser,
				OwnerID:    "jo",
				Source:     "Custom",
				Type:       domain.ReferenceConcept,
				ResourceID: "c1",
				VersionID:  "v2",
			},
		},
		{
			name: "mapping by root id",
			expr: "/orgs/org1/sources/S/mappings/m42/",
			want: expression.ParsedReference{
				OwnerKind:  domain.OwnerOrg,
				OwnerID:    "org1",
				Source:     "S",
				Type:       domain.ReferenceMapping,
				ResourceID: "m42",
			},
		},
		{
			name: "missing trailing slash",
			expr: "/orgs/WHO/sources/ICD-10/concepts/A15.1",
			want: expression.ParsedReference{
				OwnerKind:  domain.OwnerOrg,
				OwnerID:    "WHO",
				Source:     "ICD-10",
				Type:       domain.ReferenceConcept,
				ResourceID: "A15.1",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expression.Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseInvalidExpressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: ""},
		{name: "whitespace", expr: "   "},
		{name: "no leading slash", expr: "orgs/WHO/sources/S/concepts/c1/"},
		{name: "bad owner kind", expr: "/teams/WHO/sources/S/concepts/c1/"},
		{name: "bad container segment", expr: "/orgs/WHO/collections/S/concepts/c1/"},
		{name: "bad resource type", expr: "/orgs/WHO/sources/S/things/c1/"},
		{name: "too few segments", expr: "/orgs/WHO/sources/S/"},
		{name: "too many segments", expr: "/orgs/WHO/sources/S/concepts/c1/v1/extra/"},
		{name: "invalid owner characters", expr: "/orgs/W H O/sources/S/concepts/c1/"},
		{name: "invalid resource characters", expr: "/orgs/WHO/sources/S/concepts/c 1/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := expression.Parse(tt.expr)
			require.Error(t, err)
			var invalid domain.ErrInvalidExpression
			assert.True(t, errors.As(err, &invalid), "want ErrInvalidExpression, got %T", err)
		})
	}
}

func TestStringIsCanonical(t *testing.T) {
	parsed, err := expression.Parse("/orgs/WHO/sources/ICD-10/concepts/A15.1")
	require.NoError(t, err)
	assert.Equal(t, "/orgs/WHO/sources/ICD-10/concepts/A15.1/", parsed.String())

	pinned := parsed.WithVersion("v7")
	assert.Equal(t, "/orgs/WHO/sources/ICD-10/concepts/A15.1/v7/", pinned.String())
	assert.Equal(t, "/orgs/WHO/sources/ICD-10/concepts/A15.1/", pinned.WithVersion("").String())
}

func TestDropVersion(t *testing.T) {
	assert.Equal(t, "/orgs/o/sources/s/concepts/c/", expression.DropVersion("/orgs/o/sources/s/concepts/c/v3/"))
	assert.Equal(t, "/orgs/o/sources/s/concepts/c/", expression.DropVersion("/orgs/o/sources/s/concepts/c/"))
	// invalid input passes through untouched
	assert.Equal(t, "not-an-expression", expression.DropVersion("not-an-expression"))
}

func TestParseStringRoundTrip(t *testing.T) {
	segment := rapid.StringMatching(`[a-zA-Z0-9\-.]{1,12}`)
	resource := rapid.StringMatching(`[a-zA-Z0-9\-._]{1,12}`)
	rapid.Check(t, func(t *rapid.T) {
		parsed := expression.ParsedReference{
			OwnerKind:  rapid.SampledFrom([]domain.OwnerKind{domain.OwnerUser, domain.OwnerOrg}).Draw(t, "ownerKind"),
			OwnerID:    segment.Draw(t, "ownerID"),
			Source:     segment.Draw(t, "source"),
			Type:       rapid.SampledFrom([]domain.ReferenceType{domain.ReferenceConcept, domain.ReferenceMapping}).Draw(t, "type"),
			ResourceID: resource.Draw(t, "resourceID"),
		}
		if rapid.Bool().Draw(t, "pinned") {
			parsed.VersionID = resource.Draw(t, "versionID")
		}
		reparsed, err := expression.Parse(parsed.String())
		if err != nil {
			t.Fatalf("parse %q: %v", parsed.String(), err)
		}
		if reparsed != parsed {
			t.Fatalf("round trip mismatch: %+v != %+v", reparsed, parsed)
		}
	})
}
