package meltsenv

import (
	"context"
	"os"
	"os/exec"
	"strings"
)

// LoadEnv loads setting values from process environment variables.
// Keys already have the shape of environment variable names, so the default
// transform prepends the prefix (if any) and nothing else.
func (s *Settings) LoadEnv(prefix string) error {
	s.mutex.RLock()
	opts := s.options
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	s.mutex.RUnlock()

	transform := opts.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	found := make(map[string]any)
	for _, key := range keys {
		if opts.EnvWhitelist != nil && !opts.EnvWhitelist[key] {
			continue
		}
		if value, exists := os.LookupEnv(transform(key)); exists {
			if len(value) > MaxValueSize {
				return ErrValueSize
			}
			found[key] = coerceValue(value)
		}
	}

	if len(found) == 0 {
		return nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for key, value := range found {
		s.setSource(key, SourceEnv, value)
	}
	return nil
}

// DiscoverEnv finds all environment variables matching table keys and
// returns a map of key -> env var name for found variables.
func (s *Settings) DiscoverEnv(prefix string) map[string]string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	transform := s.options.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	discovered := make(map[string]string)
	for _, key := range s.order {
		envVar := transform(key)
		if _, exists := os.LookupEnv(envVar); exists {
			discovered[key] = envVar
		}
	}
	return discovered
}

// ExportEnv returns the settings that differ from their defaults as
// environment variable assignments. Negated settings are excluded.
func (s *Settings) ExportEnv(prefix string) map[string]string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	transform := s.options.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(prefix)
	}

	exports := make(map[string]string)
	for _, key := range s.order {
		item := s.items[key]
		if item.negated {
			continue
		}
		if item.currentValue != item.defaultValue {
			exports[transform(key)] = formatValue(item.currentValue)
		}
	}
	return exports
}

// Environ merges the table over a base environment ("KEY=VALUE" strings,
// typically os.Environ). Table values win on conflict; negated settings are
// removed from the result entirely. The consumer contract of the external
// simulation tool is that it reads these variables at startup.
func (s *Settings) Environ(base []string) []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	transform := s.options.EnvTransform
	if transform == nil {
		transform = defaultEnvTransform(s.options.EnvPrefix)
	}

	owned := make(map[string]bool, len(s.order))
	for _, key := range s.order {
		owned[transform(key)] = true
	}

	out := make([]string, 0, len(base)+len(s.order))
	for _, kv := range base {
		name, _, _ := strings.Cut(kv, "=")
		if !owned[name] {
			out = append(out, kv)
		}
	}

	for _, key := range s.order {
		item := s.items[key]
		if item.negated {
			continue
		}
		out = append(out, transform(key)+"="+formatValue(item.currentValue))
	}
	return out
}

// Command returns an exec.Cmd for the external simulation tool with the
// merged environment applied.
func (s *Settings) Command(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = s.Environ(os.Environ())
	return cmd
}

// defaultEnvTransform creates the default environment variable transformer
func defaultEnvTransform(prefix string) EnvTransformFunc {
	return func(key string) string {
		if prefix != "" {
			return prefix + key
		}
		return key
	}
}
