package bundle

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Parser reads a compressed bundle archive back into memory.
//
// The archive is extracted into a private temporary directory which is
// removed on every exit path. The version gate runs before the entity
// arrays are decoded, so a bundle from a future major version is rejected
// without touching its contents.
type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

// Parse extracts and decodes the bundle at path.
func (p *Parser) Parse(path string) (*Bundle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer reader.Close()

	tempDir, err := os.MkdirTemp("", "mealkeeper-restore-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create extraction directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	docPath, err := extractDocument(&reader.Reader, tempDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(docPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted backup: %w", err)
	}

	return decodeDocument(data)
}

// extractDocument writes the archive's JSON document into dir and returns
// its path. The well-known entry name is preferred; otherwise the first
// .json entry is used.
func extractDocument(r *zip.Reader, dir string) (string, error) {
	var entry *zip.File
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.Name == ArchiveEntryName {
			entry = f
			break
		}
		if entry == nil && strings.HasSuffix(strings.ToLower(f.Name), ".json") {
			entry = f
		}
	}
	if entry == nil {
		return "", fmt.Errorf("%w: archive contains no backup document", ErrFileFormat)
	}

	src, err := entry.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	defer src.Close()

	dstPath := filepath.Join(dir, ArchiveEntryName)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to extract backup document: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to extract backup document: %w", err)
	}
	return dstPath, nil
}

// decodeDocument performs the structural checks and version gate before
// unmarshalling the full bundle.
func decodeDocument(data []byte) (*Bundle, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}

	for _, field := range []string{"version", "exportDate", "recipes"} {
		if _, ok := raw[field]; !ok {
			return nil, &SchemaError{Field: field}
		}
	}

	var version string
	if err := json.Unmarshal(raw["version"], &version); err != nil || version == "" {
		return nil, &SchemaError{Field: "version"}
	}
	if err := CheckVersion(version); err != nil {
		return nil, err
	}

	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileFormat, err)
	}
	return &b, nil
}
