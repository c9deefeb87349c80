package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"meltsenv"
)

func main() {
	app := kingpin.New("meltsenv", "Inspect, export and apply alphaMELTS environment settings")
	envFile := app.Flag("file", "Path to the environment file").Short('f').String()
	noDefaults := app.Flag("no-defaults", "Do not register the stock default settings").Bool()

	showCmd := app.Command("show", "Load the environment and print the table with value sources")

	exportCmd := app.Command("export", "Write the merged environment in another format")
	exportFormat := exportCmd.Flag("format", "Output format").Default("env").Enum("env", "toml", "yaml", "json")
	exportOut := exportCmd.Flag("out", "Write to a file instead of stdout").String()

	checkCmd := app.Command("check", "Run the stock validators against the merged environment")

	runCmd := app.Command("run", "Run the external tool with the merged environment applied")
	runArgv := runCmd.Arg("command", "Command and arguments to execute").Required().Strings()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	settings, err := buildSettings(*envFile, !*noDefaults)
	if err != nil {
		logger.Fatal("failed to load environment", zap.Error(err))
	}

	switch command {
	case showCmd.FullCommand():
		err = show(settings)
	case exportCmd.FullCommand():
		err = export(settings, meltsenv.Format(*exportFormat), *exportOut)
	case checkCmd.FullCommand():
		err = check(settings, logger)
	case runCmd.FullCommand():
		err = run(settings, *runArgv, logger)
	}
	if err != nil {
		logger.Fatal("command failed", zap.Error(err))
	}
}

// buildSettings loads the environment file (discovering one when no path is
// given) layered under process environment variables. CLI overrides are not
// used here; this tool's own flags occupy the argument list.
func buildSettings(envFile string, stockDefaults bool) (*meltsenv.Settings, error) {
	builder := meltsenv.NewBuilder().
		WithArgs(nil).
		WithSources(meltsenv.SourceEnv, meltsenv.SourceFile, meltsenv.SourceDefault)
	if stockDefaults {
		builder = builder.WithStockDefaults()
	}
	if envFile != "" {
		builder = builder.WithFile(envFile)
	} else {
		builder = builder.WithFileDiscovery(meltsenv.DefaultDiscoveryOptions())
	}

	settings, err := builder.Build()
	if errors.Is(err, meltsenv.ErrEnvNotFound) {
		// Defaults plus process environment still make a usable table.
		return settings, nil
	}
	return settings, err
}

func show(settings *meltsenv.Settings) error {
	for _, key := range settings.Keys() {
		setting, _ := settings.Value(key)
		source, _ := settings.ValueSource(key)
		marker := " "
		if setting.Negated {
			marker = "!"
		}
		fmt.Printf("%s %-36s %-12v (%s)\n", marker, key, setting.Value, source)
	}
	return nil
}

func export(settings *meltsenv.Settings, format meltsenv.Format, out string) error {
	if out == "" {
		return settings.Export(os.Stdout, format)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := settings.Export(f, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func check(settings *meltsenv.Settings, logger *zap.Logger) error {
	failed := false
	for _, validator := range meltsenv.StockValidators() {
		if err := validator(settings); err != nil {
			logger.Error("validation failed", zap.Error(err))
			failed = true
		}
	}
	if failed {
		return errors.New("environment validation failed")
	}
	logger.Info("environment ok", zap.Int("settings", settings.Len()))
	return nil
}

func run(settings *meltsenv.Settings, argv []string, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := settings.Command(ctx, argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	logger.Info("starting external tool", zap.Strings("argv", argv))
	err := cmd.Run()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		logger.Warn("external tool exited with error", zap.Int("code", exitErr.ExitCode()))
		_ = logger.Sync() // os.Exit skips the deferred Sync
		os.Exit(exitErr.ExitCode())
	}
	if err != nil {
		return err
	}

	logger.Info("external tool finished")
	return nil
}
