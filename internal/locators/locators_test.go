// internal/locators/locators_test.go
package locators

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvmonitor/harvest-cli/internal/harvest"
)

const catalogYAML = `
categories:
  "Inversor - (INVERSOR)":
    elements:
      "Potencia": '//input[@id="el-power"]'
      "Energía": '//input[@id="el-energy"]'
    parameters:
      "CA": '//input[@id="par-ac"]'
  "Estación Meteorológica - (METEO)":
    elements:
      "Irradiancia": '//input[@id="el-irr"]'
    parameters: {}
`

func TestParseAndResolve(t *testing.T) {
	catalog, err := Parse([]byte(catalogYAML))
	require.NoError(t, err)

	loc, ok := catalog.Resolve("Inversor - (INVERSOR)", harvest.KindElements, "Potencia")
	require.True(t, ok)
	assert.Equal(t, harvest.Locator(`//input[@id="el-power"]`), loc)

	loc, ok = catalog.Resolve("Inversor - (INVERSOR)", harvest.KindParameters, "CA")
	require.True(t, ok)
	assert.Equal(t, harvest.Locator(`//input[@id="par-ac"]`), loc)
}

func TestResolveMisses(t *testing.T) {
	catalog, err := Parse([]byte(catalogYAML))
	require.NoError(t, err)

	cases := []struct {
		name     string
		category string
		kind     harvest.LocatorKind
		key      string
	}{
		{"unknown category", "Contador - (CONTADOR)", harvest.KindElements, "Potencia"},
		{"unknown name", "Inversor - (INVERSOR)", harvest.KindElements, "Temperatura"},
		{"wrong kind", "Inversor - (INVERSOR)", harvest.KindParameters, "Potencia"},
		{"empty kind table", "Estación Meteorológica - (METEO)", harvest.KindParameters, "CA"},
		{"bogus kind", "Inversor - (INVERSOR)", harvest.LocatorKind("widgets"), "Potencia"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, ok := catalog.Resolve(tc.category, tc.kind, tc.key)
			assert.False(t, ok)
		})
	}
}

func TestParseRejectsEmptyCatalog(t *testing.T) {
	_, err := Parse([]byte(`categories: {}`))
	assert.Error(t, err)

	_, err = Parse([]byte(``))
	assert.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte(`categories: [not, a, map`))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locators.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o644))

	catalog, err := Load(path)
	require.NoError(t, err)

	_, ok := catalog.Resolve("Estación Meteorológica - (METEO)", harvest.KindElements, "Irradiancia")
	assert.True(t, ok)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestCategoriesAreSorted(t *testing.T) {
	catalog, err := Parse([]byte(catalogYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Estación Meteorológica - (METEO)",
		"Inversor - (INVERSOR)",
	}, catalog.Categories())
}
