package meltsenv

import (
	"errors"
	"fmt"
	"os"
)

// Builder provides a fluent interface for building a Settings table
type Builder struct {
	settings      *Settings
	opts          LoadOptions
	defaults      any
	prefix        string
	stockDefaults bool
	file          string
	args          []string
	validators    []ValidatorFunc
}

// NewBuilder creates a new settings builder
func NewBuilder() *Builder {
	return &Builder{
		settings:   New(),
		opts:       DefaultLoadOptions(),
		args:       os.Args[1:],
		validators: make([]ValidatorFunc, 0),
	}
}

// WithDefaults sets the struct containing default values (env-tagged fields)
func (b *Builder) WithDefaults(defaults any) *Builder {
	b.defaults = defaults
	return b
}

// WithPrefix sets the key prefix for struct registration
func (b *Builder) WithPrefix(prefix string) *Builder {
	b.prefix = prefix
	return b
}

// WithStockDefaults registers the stock alphaMELTS default environment
func (b *Builder) WithStockDefaults() *Builder {
	b.stockDefaults = true
	return b
}

// WithFile sets the environment file path
func (b *Builder) WithFile(path string) *Builder {
	b.file = path
	return b
}

// WithArgs sets the command-line override arguments
func (b *Builder) WithArgs(args []string) *Builder {
	b.args = args
	return b
}

// WithSources sets the precedence order for settings sources
func (b *Builder) WithSources(sources ...Source) *Builder {
	b.opts.Sources = sources
	return b
}

// WithEnvPrefix sets the environment variable prefix
func (b *Builder) WithEnvPrefix(prefix string) *Builder {
	b.opts.EnvPrefix = prefix
	return b
}

// WithEnvTransform sets a custom environment variable transformer
func (b *Builder) WithEnvTransform(fn EnvTransformFunc) *Builder {
	b.opts.EnvTransform = fn
	return b
}

// WithEnvWhitelist limits which keys are checked for env vars
func (b *Builder) WithEnvWhitelist(keys ...string) *Builder {
	if b.opts.EnvWhitelist == nil {
		b.opts.EnvWhitelist = make(map[string]bool)
	}
	for _, key := range keys {
		b.opts.EnvWhitelist[key] = true
	}
	return b
}

// WithValidator adds a validation function that runs at the end of the build.
// Multiple validators can be added and are executed in the order added.
func (b *Builder) WithValidator(fn ValidatorFunc) *Builder {
	if fn != nil {
		b.validators = append(b.validators, fn)
	}
	return b
}

// WithValidators adds several validators at once
func (b *Builder) WithValidators(fns ...ValidatorFunc) *Builder {
	for _, fn := range fns {
		b.WithValidator(fn)
	}
	return b
}

// Build creates the Settings instance with all specified options
func (b *Builder) Build() (*Settings, error) {
	if b.stockDefaults {
		b.settings.RegisterStockDefaults()
	}
	if b.defaults != nil {
		if err := b.settings.RegisterStruct(b.prefix, b.defaults); err != nil {
			return nil, fmt.Errorf("failed to register defaults: %w", err)
		}
	}

	loadErr := b.settings.LoadWithOptions(b.file, b.args, b.opts)
	if loadErr != nil && !errors.Is(loadErr, ErrEnvNotFound) {
		// Return on fatal load errors. ErrEnvNotFound is not fatal here:
		// the application can proceed with defaults and env vars.
		return nil, loadErr
	}

	for _, validator := range b.validators {
		if err := validator(b.settings); err != nil {
			return nil, fmt.Errorf("settings validation failed: %w", err)
		}
	}

	// ErrEnvNotFound or nil
	return b.settings, loadErr
}

// MustBuild is like Build but panics on error
func (b *Builder) MustBuild() *Settings {
	settings, err := b.Build()
	if err != nil && !errors.Is(err, ErrEnvNotFound) {
		panic(fmt.Sprintf("settings build failed: %v", err))
	}
	return settings
}

// BuildAndScan builds and decodes the final table into the target struct pointer
func (b *Builder) BuildAndScan(target any) error {
	settings, err := b.Build()
	if err != nil && !errors.Is(err, ErrEnvNotFound) {
		return err
	}

	if scanErr := settings.Scan(target); scanErr != nil {
		return fmt.Errorf("failed to scan final settings into target: %w", scanErr)
	}

	// ErrEnvNotFound or nil
	return err
}

// Quick creates a fully loaded Settings table with a single call: stock
// defaults, the given environment file, process environment, and os.Args
// overrides with standard precedence.
func Quick(envFile string) (*Settings, error) {
	settings := Defaults()
	err := settings.LoadWithOptions(envFile, os.Args[1:], DefaultLoadOptions())
	return settings, err
}
