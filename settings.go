package meltsenv

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Source represents a configuration source, used to define load precedence
type Source string

const (
	// SourceDefault represents registered default values
	SourceDefault Source = "default"
	// SourceFile represents values loaded from an environment file
	SourceFile Source = "file"
	// SourceEnv represents values loaded from process environment variables
	SourceEnv Source = "env"
	// SourceCLI represents values loaded from command-line overrides
	SourceCLI Source = "cli"
)

// Setting is a single named configuration value with an inferred scalar type.
// Negated settings are forced unset: they render as `!` comment lines and are
// excluded from the process environment.
type Setting struct {
	Key     string
	Value   any
	Negated bool
}

// settingItem holds the per-source values for one key
type settingItem struct {
	defaultValue any
	currentValue any
	negated      bool
	values       map[Source]any
}

// Settings is an ordered mapping from setting keys to typed values, loaded
// from an alphaMELTS environment file and optional override sources.
// Insertion order equals file order; a duplicate key keeps its first
// position while the last value wins.
type Settings struct {
	items    map[string]settingItem
	order    []string
	options  LoadOptions
	filePath string
	watcher  *watcher
	mutex    sync.RWMutex
}

// New creates and initializes a new Settings instance.
func New() *Settings {
	return NewWithOptions(DefaultLoadOptions())
}

// NewWithOptions creates a Settings instance with custom load options.
func NewWithOptions(opts LoadOptions) *Settings {
	return &Settings{
		items:   make(map[string]settingItem),
		options: opts,
	}
}

// Register makes a setting key known to the Settings instance.
// defaultValue is the value returned by Get if no source has provided one.
func (s *Settings) Register(key string, defaultValue any) error {
	if !isValidKey(key) {
		return fmt.Errorf("invalid setting key %q", key)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, exists := s.items[key]
	if !exists {
		s.order = append(s.order, key)
	}
	item.defaultValue = defaultValue
	item.currentValue = s.computeValue(item)
	s.items[key] = item

	return nil
}

// RegisterStruct registers setting keys and defaults derived from a struct.
// Field keys come from the `env` struct tag; untagged exported fields use
// the uppercased field name prefixed with prefix.
func (s *Settings) RegisterStruct(prefix string, defaults any) error {
	v := reflect.ValueOf(defaults)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return fmt.Errorf("RegisterStruct requires a non-nil struct pointer or value")
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("RegisterStruct requires a struct or struct pointer, got %T", defaults)
	}

	t := v.Type()
	var firstErr error
	for i := 0; i < v.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		tag := field.Tag.Get("env")
		if tag == "-" {
			continue
		}

		key := prefix + strings.ToUpper(field.Name)
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] != "" {
				key = parts[0]
			}
		}

		if err := s.Register(key, v.Field(i).Interface()); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// Get retrieves the current value for a key, after source precedence and
// negation are applied. The second return value reports whether the key is
// present in the table.
func (s *Settings) Get(key string) (any, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false
	}
	return item.currentValue, true
}

// Value retrieves the full Setting for a key, including the negated flag
// and the stored (pre-negation) value.
func (s *Settings) Value(key string) (Setting, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return Setting{}, false
	}
	return Setting{Key: key, Value: s.storedValue(item), Negated: item.negated}, true
}

// Set assigns an explicit value for a key, creating the entry when absent.
// Explicit values take SourceCLI precedence and clear any negation.
func (s *Settings) Set(key string, value any) error {
	if !isValidKey(key) {
		return fmt.Errorf("invalid setting key %q", key)
	}
	if str, ok := value.(string); ok && str == "" {
		// The line format has no representation for an empty value.
		return fmt.Errorf("empty value for setting %q cannot be written to an environment file", key)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.setSource(key, SourceCLI, value)
	item := s.items[key]
	item.negated = false
	item.currentValue = s.computeValue(item)
	s.items[key] = item
	return nil
}

// Unset marks a key as negated: its value is forced to boolean false, it is
// removed from the exported process environment, and the encoder writes it
// back as a `!` comment line.
func (s *Settings) Unset(key string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	item, ok := s.items[key]
	if !ok {
		return fmt.Errorf("setting not present: %s", key)
	}
	item.negated = true
	item.currentValue = s.computeValue(item)
	s.items[key] = item
	return nil
}

// Has reports whether a key is present in the table.
func (s *Settings) Has(key string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	_, ok := s.items[key]
	return ok
}

// Keys returns all keys in table order.
func (s *Settings) Keys() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	keys := make([]string, len(s.order))
	copy(keys, s.order)
	return keys
}

// Len returns the number of settings in the table.
func (s *Settings) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.order)
}

// ValueSource reports which source supplied the current value for a key.
func (s *Settings) ValueSource(key string) (Source, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	item, ok := s.items[key]
	if !ok {
		return "", false
	}

	for _, source := range s.sourceOrder() {
		if source == SourceDefault {
			if item.defaultValue != nil {
				return SourceDefault, true
			}
			continue
		}
		if _, exists := item.values[source]; exists {
			return source, true
		}
	}
	return "", false
}

// setSource records a value for one source, creating the entry when absent.
// Callers must hold the write lock.
func (s *Settings) setSource(key string, source Source, value any) {
	item, exists := s.items[key]
	if !exists {
		s.order = append(s.order, key)
	}
	if item.values == nil {
		item.values = make(map[Source]any)
	}
	item.values[source] = value
	item.currentValue = s.computeValue(item)
	s.items[key] = item
}

// computeValue resolves the effective value of an item from source precedence.
// Negation wins over every source.
func (s *Settings) computeValue(item settingItem) any {
	if item.negated {
		return false
	}
	return s.storedValue(item)
}

// storedValue resolves the highest-precedence stored value, ignoring negation.
func (s *Settings) storedValue(item settingItem) any {
	for _, source := range s.sourceOrder() {
		if source == SourceDefault {
			if item.defaultValue != nil {
				return item.defaultValue
			}
			continue
		}
		if value, exists := item.values[source]; exists {
			return value
		}
	}
	return item.defaultValue
}

// sourceOrder returns the configured precedence, falling back to the default.
func (s *Settings) sourceOrder() []Source {
	if len(s.options.Sources) > 0 {
		return s.options.Sources
	}
	return []Source{SourceCLI, SourceEnv, SourceFile, SourceDefault}
}

// isValidKey checks that a key has the shape of an environment variable name.
func isValidKey(key string) bool {
	if len(key) == 0 {
		return false
	}
	first := rune(key[0])
	if !isAlpha(first) && first != '_' {
		return false
	}
	for _, r := range key[1:] {
		if !isAlpha(r) && !isDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
