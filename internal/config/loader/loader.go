// Package loader decodes configuration files into Go structs, picking the
// format from the file extension. Decoding is strict: unknown keys and
// mistyped values are errors.
package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlanticdynamic/lynxserve/internal/config/errz"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format identifies a config file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

// FormatFromPath returns the format implied by the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: '%s'", errz.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// LoadFile reads path and decodes it into v.
func LoadFile(path string, v any) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return Decode(format, data, v)
}

// Decode parses data in the given format into v.
func Decode(format Format, data []byte, v any) error {
	switch format {
	case FormatTOML:
		return decodeTOML(data, v)
	case FormatYAML:
		return decodeYAML(data, v)
	default:
		return fmt.Errorf("%w: %s", errz.ErrUnsupportedFormat, format)
	}
}

func decodeTOML(data []byte, v any) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var strictErr *toml.StrictMissingError
		if errors.As(err, &strictErr) {
			return fmt.Errorf("unknown keys in TOML config:\n%s", strictErr.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("failed to parse TOML config at line %d, column %d: %w", row, col, err)
		}
		return fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return nil
}

func decodeYAML(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return nil
}
