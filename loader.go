package meltsenv

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvTransformFunc converts a setting key to an environment variable name.
type EnvTransformFunc func(key string) string

// LoadOptions configures how settings are loaded from multiple sources
type LoadOptions struct {
	// Sources defines the precedence order (first = highest priority)
	// Default: [SourceCLI, SourceEnv, SourceFile, SourceDefault]
	Sources []Source

	// EnvPrefix is prepended to environment variable names.
	// Setting keys are already environment variable names, so the default
	// transform is the identity.
	EnvPrefix string

	// EnvTransform customizes how keys map to environment variables
	EnvTransform EnvTransformFunc

	// EnvWhitelist limits which keys are checked for env vars (nil = all)
	EnvWhitelist map[string]bool
}

// DefaultLoadOptions returns the standard load options
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Sources: []Source{SourceCLI, SourceEnv, SourceFile, SourceDefault},
	}
}

// fileEntry is one data line of an environment file, in file order.
type fileEntry struct {
	key   string
	value any
}

// Load reads settings from an environment file and merges overrides from
// the process environment and command-line arguments.
func (s *Settings) Load(filePath string, args []string) error {
	s.mutex.RLock()
	opts := s.options
	s.mutex.RUnlock()
	return s.LoadWithOptions(filePath, args, opts)
}

// LoadWithOptions loads settings from multiple sources with custom options
func (s *Settings) LoadWithOptions(filePath string, args []string, opts LoadOptions) error {
	s.mutex.Lock()
	s.options = opts
	s.mutex.Unlock()

	var loadErrors []error
	var notFound error

	// Process each source according to precedence (in reverse order for proper layering)
	for i := len(opts.Sources) - 1; i >= 0; i-- {
		switch opts.Sources[i] {
		case SourceDefault:
			// Defaults are already in place from Register calls
			continue

		case SourceFile:
			if filePath != "" {
				if err := s.LoadFile(filePath); err != nil {
					if errors.Is(err, ErrEnvNotFound) {
						notFound = err
					} else {
						return err // Fatal error
					}
				}
			}

		case SourceEnv:
			if err := s.LoadEnv(opts.EnvPrefix); err != nil {
				loadErrors = append(loadErrors, err)
			}

		case SourceCLI:
			if len(args) > 0 {
				if err := s.LoadCLI(args); err != nil {
					loadErrors = append(loadErrors, err)
				}
			}
		}
	}

	// A missing file is reported only when nothing else failed, so that
	// errors.Is(err, ErrEnvNotFound) identifies the benign case exactly.
	if len(loadErrors) > 0 {
		return errors.Join(loadErrors...)
	}
	return notFound
}

// LoadFile loads settings from a file. The native line-oriented environment
// format is assumed unless the extension names a structured format
// (.toml, .json, .yaml/.yml), in which case a flat document is expected.
func (s *Settings) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrEnvNotFound
		}
		return fmt.Errorf("failed to read environment file '%s': %w", path, err)
	}

	var entries []fileEntry
	switch detectFileFormat(path) {
	case "toml":
		entries, err = decodeTOML(data)
	case "json":
		entries, err = decodeJSON(data)
	case "yaml":
		entries, err = decodeYAML(data)
	default:
		entries, err = parseEnvFile(bytes.NewReader(data))
	}
	if err != nil {
		return fmt.Errorf("failed to parse environment file '%s': %w", path, err)
	}

	s.applyFileEntries(path, entries)
	return nil
}

// LoadReader loads settings in the native environment format from a stream.
func (s *Settings) LoadReader(r io.Reader) error {
	entries, err := parseEnvFile(r)
	if err != nil {
		return err
	}
	s.applyFileEntries("", entries)
	return nil
}

// LoadCLI loads settings from command-line override arguments
func (s *Settings) LoadCLI(args []string) error {
	overrides, err := parseOverrideArgs(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOverrideParse, err)
	}
	if len(overrides) == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, e := range overrides {
		s.setSource(e.key, SourceCLI, e.value)
	}
	return nil
}

// parseEnvFile reads the line-oriented environment format:
//   - blank and whitespace-only lines are skipped
//   - lines whose first non-space character is '!' are comments
//   - data lines are KEY<whitespace>VALUE; a key without a value is an error
//
// Parsing is all-or-nothing: the first malformed line aborts the load.
func parseEnvFile(r io.Reader) ([]fileEntry, error) {
	var entries []fileEntry

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		sep := strings.IndexFunc(line, unicode.IsSpace)
		if sep < 0 {
			return nil, &MalformedLineError{Line: lineNo, Text: line}
		}

		key := line[:sep]
		value := strings.TrimSpace(line[sep:])
		entries = append(entries, fileEntry{key: key, value: coerceValue(value)})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read environment data: %w", err)
	}

	return entries, nil
}

// applyFileEntries atomically replaces the file source with the new entries.
// Keys absent from the new data lose their previous file-sourced value.
func (s *Settings) applyFileEntries(path string, entries []fileEntry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if path != "" {
		s.filePath = path
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		// Last occurrence of a duplicate key wins; the key keeps its
		// first position in the table order.
		s.setSource(e.key, SourceFile, e.value)
		seen[e.key] = true
	}

	for key, item := range s.items {
		if seen[key] {
			continue
		}
		if _, exists := item.values[SourceFile]; exists {
			delete(item.values, SourceFile)
			item.currentValue = s.computeValue(item)
			s.items[key] = item
		}
	}
}

// coerceValue maps a value token to its most specific type: boolean literal
// (True/False, case-insensitive), integer, float, else raw string.
func coerceValue(token string) any {
	if strings.EqualFold(token, "true") {
		return true
	}
	if strings.EqualFold(token, "false") {
		return false
	}
	if v, err := strconv.ParseInt(token, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(token, 64); err == nil {
		return v
	}
	return token
}

// parseOverrideArgs processes command-line overrides of the form
// "--KEY=value", "--KEY value", or "--KEY" (boolean true).
func parseOverrideArgs(args []string) ([]fileEntry, error) {
	var overrides []fileEntry

	i := 0
	for i < len(args) {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			// Skip non-flag arguments
			i++
			continue
		}

		content := strings.TrimPrefix(arg, "--")
		if content == "" {
			// Skip "--" separator
			i++
			continue
		}

		var key, valueStr string
		if eq := strings.Index(content, "="); eq >= 0 {
			key = content[:eq]
			valueStr = content[eq+1:]
			i++
		} else {
			key = content
			if i+1 >= len(args) || strings.HasPrefix(args[i+1], "--") {
				valueStr = "true"
				i++
			} else {
				valueStr = args[i+1]
				i += 2
			}
		}

		if !isValidKey(key) {
			return nil, fmt.Errorf("invalid override key %q", key)
		}
		overrides = append(overrides, fileEntry{key: key, value: coerceValue(valueStr)})
	}

	return overrides, nil
}

// detectFileFormat determines a structured format from the file extension.
// Anything else is treated as the native environment format.
func detectFileFormat(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml", ".tml":
		return "toml"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "env"
	}
}

func decodeTOML(data []byte) ([]fileEntry, error) {
	doc := make(map[string]any)
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return flatEntries(doc)
}

func decodeYAML(data []byte) ([]fileEntry, error) {
	doc := make(map[string]any)
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return flatEntries(doc)
}

func decodeJSON(data []byte) ([]fileEntry, error) {
	doc := make(map[string]any)
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber() // Preserve number precision
	if err := decoder.Decode(&doc); err != nil {
		return nil, err
	}
	return flatEntries(doc)
}

// flatEntries converts a flat structured document to file entries.
// Map iteration order is not stable, so keys are sorted for determinism.
func flatEntries(doc map[string]any) ([]fileEntry, error) {
	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]fileEntry, 0, len(keys))
	for _, key := range keys {
		value, err := normalizeValue(doc[key])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		entries = append(entries, fileEntry{key: key, value: value})
	}
	return entries, nil
}

// normalizeValue maps decoder-specific scalar types onto the table's
// canonical set (bool, int64, float64, string).
func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case bool, int64, float64, string:
		return t, nil
	case int:
		return int64(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		if f, err := t.Float64(); err == nil {
			return f, nil
		}
		return t.String(), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T (documents must be flat scalars)", v)
	}
}
