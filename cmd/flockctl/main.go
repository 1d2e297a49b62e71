package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/filehandle/internal/logger"
	"github.com/marmos91/filehandle/pkg/config"
	"github.com/marmos91/filehandle/pkg/filehandle"
	"github.com/marmos91/filehandle/pkg/lockwait"
	"github.com/marmos91/filehandle/pkg/metrics"
)

const usageText = `flockctl - advisory file locking playground

Usage:
  flockctl [global flags] <command> [arguments]

Commands:
  hold [text]     Take an exclusive lock, write text at offset 0 and keep the lock
  read            Take a shared lock and print the whole file
  append <text>   Append a line under an exclusive lock
  chmod <octal>   Change the file mode (e.g. 0644)
  stat            Show size, mode, ownership and access for the current user
  init [-force]   Write a default configuration file

Global flags:
`

// errUsage marks command line mistakes; main exits with status 2 for them.
var errUsage = errors.New("usage error")

// environment is what every command needs once configuration is loaded.
type environment struct {
	cfg      *config.Config
	handle   *filehandle.FileHandle
	acquirer lockwait.Acquirer
	stdout   io.Writer
}

type command func(ctx context.Context, env *environment, args []string) error

var commands = map[string]command{
	"hold":   runHold,
	"read":   runRead,
	"append": runAppend,
	"chmod":  runChmod,
	"stat":   runStat,
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "flockctl: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("flockctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to config file (default: $XDG_CONFIG_HOME/flockctl/config.yaml)")
	logLevel := fs.String("log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")
	filePath := fs.String("file", "", "Override the target file")

	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("%w: missing command", errUsage)
	}

	name, cmdArgs := fs.Arg(0), fs.Args()[1:]

	// init must work without (or with a broken) existing config
	if name == "init" {
		return runInit(*configPath, cmdArgs, stdout, stderr)
	}

	cmd, ok := commands[name]
	if !ok {
		fs.Usage()
		return fmt.Errorf("%w: unknown command %q", errUsage, name)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	// CLI flags take precedence over file and environment
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *filePath != "" {
		cfg.File.Path = *filePath
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return err
	}
	defer logger.Close()

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		defer metrics.LogSummary()
	}

	handle, err := config.CreateFileHandle(&cfg.File, metrics.NewFileHandleMetrics())
	if err != nil {
		return err
	}

	acquirer, err := config.CreateAcquirer(&cfg.Lock)
	if err != nil {
		return err
	}

	logger.Debug("file: %s (mode %s), lock strategy: %s", cfg.File.Path, cfg.File.Permissions, cfg.Lock.Strategy)

	// Ctrl+C cancels lock waits and ends a hold early
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env := &environment{
		cfg:      cfg,
		handle:   handle,
		acquirer: acquirer,
		stdout:   stdout,
	}

	return cmd(ctx, env, cmdArgs)
}

func runInit(configPath string, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(stderr)
	force := fs.Bool("force", false, "Overwrite an existing config file")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	path := configPath
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Configuration written to %s\n", path)
	return nil
}
