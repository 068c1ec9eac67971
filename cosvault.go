package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vcpagent/cosvault/pkg/app"
	"github.com/vcpagent/cosvault/pkg/config"
	"github.com/vcpagent/cosvault/pkg/dispatch"
	"github.com/vcpagent/cosvault/pkg/dto"
)

const operationsLogFile = "cos_operations.log"

func main() {
	var fileName string
	flag.StringVar(&fileName, "f", "", "Optional configuration file (environment variables take precedence)")
	flag.Parse()

	cfg, err := config.Load(fileName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading configuration: %s\n", err.Error())
		os.Exit(1)
	}
	l := initTrace(cfg)

	// Bootstrap failures are fatal, no command is processed.
	if err := cfg.Validate(); err != nil {
		l.Error("invalid configuration", slog.String("error", err.Error()))
		emit(dto.Envelope{Status: dto.StatusError, Error: err.Error()})
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		l.Error("error creating the app", slog.String("error", err.Error()))
		emit(dto.Envelope{Status: dto.StatusError, Error: err.Error()})
		os.Exit(1)
	}
	a.SetLogger(l)

	ctx := context.Background()
	if err := a.EnsureFolderLayout(ctx); err != nil {
		l.Error("error creating folder layout", slog.String("error", err.Error()))
		emit(dto.Envelope{Status: dto.StatusError, Error: err.Error()})
		os.Exit(1)
	}

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		l.Error("error reading stdin", slog.String("error", err.Error()))
		emit(dto.Envelope{Status: dto.StatusError, Error: "error reading input"})
		os.Exit(1)
	}

	d := dispatch.New(a)
	d.SetLogger(l)
	envelope, ok := d.Run(ctx, raw)
	emit(envelope)
	if !ok {
		os.Exit(1)
	}
}

// emit writes the result envelope to stdout. Stdout carries only the
// envelope; all logging goes to stderr and the operations log.
func emit(envelope dto.Envelope) {
	if err := json.NewEncoder(os.Stdout).Encode(envelope); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing result: %s\n", err.Error())
	}
}

// initTrace initializes the logger. When file logging is enabled the
// operational log is appended to cos_operations.log; failures to open
// the file are swallowed and never affect command outcome.
func initTrace(cfg config.Config) *slog.Logger {
	handlerOptions := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	switch cfg.LogLevel {
	case "debug":
		handlerOptions.Level = slog.LevelDebug
		handlerOptions.AddSource = true
	case "info":
		handlerOptions.Level = slog.LevelInfo
	case "warn":
		handlerOptions.Level = slog.LevelWarn
	case "error":
		handlerOptions.Level = slog.LevelError
	default:
		handlerOptions.Level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.EnableLogging {
		f, err := os.OpenFile(operationsLogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			out = io.MultiWriter(os.Stderr, f)
		}
	}

	handler := slog.NewTextHandler(out, handlerOptions)
	return slog.New(handler)
}
