package meltsenv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ExperimentFileName is the environment file name the external tool expects
// inside an experiment folder.
const ExperimentFileName = "environment.txt"

// Format identifies an export serialization format
type Format string

const (
	FormatEnv  Format = "env"
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Encode writes the table in the native environment format, in table order.
// Negated settings are written as `!` comment lines so the external tool
// treats them as unset. Loading the output again yields an identical table
// for all non-negated settings.
func (s *Settings) Encode(w io.Writer) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, key := range s.order {
		item := s.items[key]
		line := key + " " + formatValue(s.storedValue(item))
		if item.negated {
			line = "!" + line
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return fmt.Errorf("failed to write environment data: %w", err)
		}
	}
	return nil
}

// Save writes the table to an environment file atomically: the data goes to
// a temp file in the target directory which is then renamed into place.
func (s *Settings) Save(path string) error {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return err
	}
	return atomicWriteFile(path, buf.Bytes())
}

// Export writes the current values in the requested format. The structured
// formats lose table order (they serialize a flat map) and skip negated
// settings; FormatEnv is equivalent to Encode.
func (s *Settings) Export(w io.Writer, format Format) error {
	if format == FormatEnv || format == "" {
		return s.Encode(w)
	}

	s.mutex.RLock()
	doc := make(map[string]any, len(s.order))
	for _, key := range s.order {
		item := s.items[key]
		if item.negated {
			continue
		}
		doc[key] = item.currentValue
	}
	s.mutex.RUnlock()

	switch format {
	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal settings to TOML: %w", err)
		}
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal settings to YAML: %w", err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to marshal settings to JSON: %w", err)
		}
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
	return nil
}

// WriteExperiment creates an experiment folder and writes the environment
// file the external tool reads from it. It returns the environment file path.
func (s *Settings) WriteExperiment(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create experiment directory '%s': %w", dir, err)
	}
	path := filepath.Join(dir, ExperimentFileName)
	if err := s.Save(path); err != nil {
		return "", err
	}
	return path, nil
}

// formatValue renders a scalar so that reloading reparses it to the same
// type: booleans as True/False, floats always with a mantissa marker.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "True"
		}
		return "False"
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		str := strconv.FormatFloat(t, 'g', -1, 64)
		if !strings.ContainsAny(str, ".eE") {
			str += ".0"
		}
		return str
	case string:
		return t
	default:
		return fmt.Sprintf("%v", v)
	}
}

// atomicWriteFile performs atomic file write
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	tempPath := tempFile.Name()
	defer os.Remove(tempPath) // Clean up on any error

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Chmod(tempPath, 0644); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
