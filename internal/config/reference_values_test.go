package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termcore/internal/config"
)

func TestDefaultReferenceValues(t *testing.T) {
	rv := config.DefaultReferenceValues()

	assert.True(t, rv.HasClass("Diagnosis"))
	assert.False(t, rv.HasClass("Made Up Class"))
	assert.True(t, rv.HasDatatype("Numeric"))
	assert.True(t, rv.HasNameType("FULLY_SPECIFIED"))
	assert.True(t, rv.HasNameType("Fully Specified"))
	assert.True(t, rv.HasMapType("SAME-AS"))
	assert.True(t, rv.HasLocale("en"))
	assert.False(t, rv.HasLocale("zz"))
}

func TestEmptyAttributeMeansNone(t *testing.T) {
	rv := config.DefaultReferenceValues()

	assert.True(t, rv.HasDatatype(""))
	assert.True(t, rv.HasNameType(""))
	assert.True(t, rv.HasDescriptionType(""))
	// classes and locales have no None entry, empty stays invalid
	assert.False(t, rv.HasClass(""))
	assert.False(t, rv.HasLocale(""))
}

func TestLoadReferenceValuesPartialFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference_values.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locales:\n  - en\n  - de\n"), 0o600))

	rv, err := config.LoadReferenceValues(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"en", "de"}, rv.Locales)
	// every list absent from the file keeps its default
	defaults := config.DefaultReferenceValues()
	assert.Equal(t, defaults.Classes, rv.Classes)
	assert.Equal(t, defaults.Datatypes, rv.Datatypes)
	assert.Equal(t, defaults.NameTypes, rv.NameTypes)
	assert.Equal(t, defaults.DescriptionTypes, rv.DescriptionTypes)
	assert.Equal(t, defaults.MapTypes, rv.MapTypes)
}

func TestLoadReferenceValuesErrors(t *testing.T) {
	_, err := config.LoadReferenceValues(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("locales: {not a list"), 0o600))
	_, err = config.LoadReferenceValues(path)
	require.Error(t, err)
}

func TestIsLookupClass(t *testing.T) {
	for _, class := range []string{"Concept Class", "Datatype", "NameType", "DescriptionType", "MapType", "Locale"} {
		assert.True(t, config.IsLookupClass(class), class)
	}
	assert.False(t, config.IsLookupClass("Diagnosis"))
}
