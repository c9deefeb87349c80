// Package meltsenv manages alphaMELTS environment settings for Go
// applications that drive the external simulation tool. It loads the
// line-oriented environment file format (`KEY VALUE` pairs, `!` comments),
// layers overrides from the process environment and command-line arguments,
// and hands the merged table to the simulation process at startup.
//
// Features:
//   - Line-oriented environment file parsing with typed value coercion
//   - Ordered settings table preserving file order for round-trip output
//   - Multiple sources with customizable precedence (CLI, env, file, default)
//   - Thread-safe operations using sync.RWMutex
//   - Struct decoding with tag support via mapstructure
//   - Structured import/export (TOML, YAML, JSON) for downstream tooling
//   - Builder pattern with pluggable validators
//   - Atomic file writes and experiment folder creation
//   - Optional polling-based auto-reload
//
// Quick Start:
//
//	settings, err := meltsenv.NewBuilder().
//	    WithStockDefaults().
//	    WithFile("environment.txt").
//	    Build()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mode, _ := settings.String("ALPHAMELTS_MODE")
//	maxP, _ := settings.Float64("ALPHAMELTS_MAXP")
//
//	cmd := settings.Command(ctx, "run_alphamelts.command")
//	err = cmd.Run()
//
// Default Precedence (highest to lowest):
//  1. Command-line overrides (--ALPHAMELTS_MODE=isothermal)
//  2. Environment variables (ALPHAMELTS_MODE=isothermal)
//  3. Environment file (environment.txt)
//  4. Registered default values
//
// Thread Safety:
// All operations are thread-safe. The package uses read-write mutexes to
// allow concurrent reads while protecting writes.
package meltsenv
