package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	gcerrors "github.com/otherjamesbrown/gendercode/pkg/errors"
	"github.com/otherjamesbrown/gendercode/pkg/names"
)

// Format is a dictionary file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: dictionary file %q", gcerrors.ErrUnsupportedFormat, path)
	}
}

// FileSource reads the dictionary tables from a single YAML, TOML or JSON
// document with one list per table (all, us, foreign, wildcard).
type FileSource struct {
	path   string
	format Format
}

// NewFileSource creates a FileSource. The format follows the file extension.
func NewFileSource(path string) (*FileSource, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: path, format: format}, nil
}

// Name implements Source.
func (f *FileSource) Name() string {
	return "file:" + f.path
}

// Path returns the dictionary file path.
func (f *FileSource) Path() string {
	return f.path
}

// Tables implements BulkSource.
func (f *FileSource) Tables(ctx context.Context) (names.Tables, error) {
	if err := ctx.Err(); err != nil {
		return names.Tables{}, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return names.Tables{}, fmt.Errorf("%w: %s", gcerrors.ErrNotFound, f.path)
		}
		return names.Tables{}, fmt.Errorf("failed to read dictionary file: %w", err)
	}
	return decodeTables(data, f.format)
}

// Table implements Source.
func (f *FileSource) Table(ctx context.Context, tier names.Tier) ([]names.Entry, error) {
	tables, err := f.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return tables.Get(tier), nil
}

// ReplaceTable implements Writer by rewriting the whole file.
func (f *FileSource) ReplaceTable(ctx context.Context, tier names.Tier, entries []names.Entry) error {
	tables, err := f.Tables(ctx)
	if err != nil && !gcerrors.IsNotFound(err) {
		return err
	}
	tables.Set(tier, entries)
	return WriteFile(f.path, tables)
}

// WriteFile encodes tables to path using the format of its extension.
func WriteFile(path string, tables names.Tables) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := encodeTables(tables, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write dictionary file: %w", err)
	}
	return nil
}

func decodeTables(data []byte, format Format) (names.Tables, error) {
	var tables names.Tables
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &tables)
	case FormatTOML:
		err = toml.Unmarshal(data, &tables)
	case FormatJSON:
		err = json.Unmarshal(data, &tables)
	default:
		return tables, fmt.Errorf("%w: %s", gcerrors.ErrUnsupportedFormat, format)
	}
	if err != nil {
		return names.Tables{}, fmt.Errorf("%w: parsing %s dictionary: %v", gcerrors.ErrValidation, format, err)
	}
	return tables, nil
}

func encodeTables(tables names.Tables, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		return yaml.Marshal(tables)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(tables); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return json.MarshalIndent(tables, "", "  ")
	default:
		return nil, fmt.Errorf("%w: %s", gcerrors.ErrUnsupportedFormat, format)
	}
}
