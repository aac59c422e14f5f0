package bundle

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeArchive builds a zip file containing a single named entry.
func writeArchive(t *testing.T, entryName, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "backup.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(entryName)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

const minimalDocument = `{
	"version": "2.1.0",
	"exportDate": "2026-01-15T10:00:00Z",
	"recipes": [
		{
			"id": "42",
			"title": "Tomato Soup",
			"ingredients": [{"name": "tomato", "amount": 4, "unit": "pcs"}],
			"instructions": ["Chop tomatoes", {"text": "Simmer for 20 minutes"}]
		}
	],
	"collections": [],
	"mealPlans": [],
	"shoppingLists": []
}`

func TestParserParse(t *testing.T) {
	path := writeArchive(t, ArchiveEntryName, minimalDocument)

	b, err := NewParser().Parse(path)
	require.NoError(t, err)

	assert.Equal(t, "2.1.0", b.Version)
	assert.Equal(t, "2026-01-15T10:00:00Z", b.ExportDate)
	require.Len(t, b.Recipes, 1)
	assert.Equal(t, "Tomato Soup", b.Recipes[0].Title)
	assert.Equal(t, "42", b.Recipes[0].OldID)

	// Empty arrays decode as present-but-empty, not nil
	assert.NotNil(t, b.Collections)
	assert.NotNil(t, b.MealPlans)
	assert.NotNil(t, b.ShoppingLists)
}

func TestParserParseInstructionForms(t *testing.T) {
	path := writeArchive(t, ArchiveEntryName, minimalDocument)

	b, err := NewParser().Parse(path)
	require.NoError(t, err)

	require.Len(t, b.Recipes[0].Instructions, 2)
	assert.Equal(t, "Chop tomatoes", b.Recipes[0].Instructions[0].Text)
	assert.Equal(t, "Simmer for 20 minutes", b.Recipes[0].Instructions[1].Text)
}

func TestParserParseAlternateEntryName(t *testing.T) {
	// Any .json entry works when the canonical name is absent
	path := writeArchive(t, "export-2026.json", minimalDocument)

	b, err := NewParser().Parse(path)
	require.NoError(t, err)
	assert.Len(t, b.Recipes, 1)
}

func TestParserParseMissingFile(t *testing.T) {
	_, err := NewParser().Parse(filepath.Join(t.TempDir(), "nope.zip"))
	assert.ErrorIs(t, err, ErrFileFormat)
}

func TestParserParseNotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.zip")
	require.NoError(t, os.WriteFile(path, []byte("just some text"), 0o644))

	_, err := NewParser().Parse(path)
	assert.ErrorIs(t, err, ErrFileFormat)
}

func TestParserParseNoDocumentInArchive(t *testing.T) {
	path := writeArchive(t, "readme.txt", "nothing to see")

	_, err := NewParser().Parse(path)
	assert.ErrorIs(t, err, ErrFileFormat)
}

func TestParserParseInvalidJSON(t *testing.T) {
	path := writeArchive(t, ArchiveEntryName, "{not json")

	_, err := NewParser().Parse(path)
	assert.ErrorIs(t, err, ErrFileFormat)
}

func TestParserParseMissingRequiredFields(t *testing.T) {
	tests := []struct {
		name     string
		document string
		field    string
	}{
		{"no version", `{"exportDate": "2026-01-01", "recipes": []}`, "version"},
		{"no exportDate", `{"version": "2.1.0", "recipes": []}`, "exportDate"},
		{"no recipes", `{"version": "2.1.0", "exportDate": "2026-01-01"}`, "recipes"},
		{"empty version", `{"version": "", "exportDate": "2026-01-01", "recipes": []}`, "version"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, ArchiveEntryName, tt.document)

			_, err := NewParser().Parse(path)
			var schemaErr *SchemaError
			require.True(t, errors.As(err, &schemaErr))
			assert.Equal(t, tt.field, schemaErr.Field)
		})
	}
}

func TestParserParseVersionGateBeforeEntities(t *testing.T) {
	// The entity payload is deliberately malformed; the version gate
	// must reject the bundle before entities are decoded.
	document := `{"version": "9.0.0", "exportDate": "2026-01-01", "recipes": [{"title": 12345}]}`
	path := writeArchive(t, ArchiveEntryName, document)

	_, err := NewParser().Parse(path)
	var versionErr *IncompatibleVersionError
	require.True(t, errors.As(err, &versionErr))
	assert.Equal(t, "9.0.0", versionErr.Version)
}

func TestParserParseAbsentArraysStayNil(t *testing.T) {
	document := `{"version": "2.1.0", "exportDate": "2026-01-01", "recipes": []}`
	path := writeArchive(t, ArchiveEntryName, document)

	b, err := NewParser().Parse(path)
	require.NoError(t, err)
	assert.NotNil(t, b.Recipes)
	assert.Nil(t, b.Collections)
	assert.Nil(t, b.MealPlans)
	assert.Nil(t, b.ShoppingLists)
}

func TestIngredientSnapshotLegacyName(t *testing.T) {
	current := IngredientSnapshot{Name: "flour", LegacyName: "old"}
	assert.Equal(t, "flour", current.ItemName())

	legacy := IngredientSnapshot{LegacyName: "sugar"}
	assert.Equal(t, "sugar", legacy.ItemName())
}
