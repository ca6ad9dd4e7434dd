package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/condep/condep/pkg/config"
	"github.com/condep/condep/pkg/engine"
	"github.com/condep/condep/pkg/paths"
	"github.com/condep/condep/pkg/telemetry"
)

// app holds the state shared by the commands of one invocation.
var app struct {
	tel *telemetry.Telemetry
}

func setupTelemetry(version string) error {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Logging.Format = logFormat
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	cfg.Tracing.Exporter = traceExporter
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		cfg.Tracing.Endpoint = endpoint
	}
	cfg.Metrics.TextfilePath = metricsFile

	tel, err := telemetry.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	app.tel = tel
	log.Logger = tel.Logger
	zerolog.SetGlobalLevel(telemetry.ParseLevel(cfg.Logging.Level))
	return nil
}

func metrics() *telemetry.Metrics {
	if app.tel == nil {
		return nil
	}
	return app.tel.Metrics
}

// activeCatalog returns the catalog file in use, or "" for the built-in one.
func activeCatalog() string {
	if catalogPath != "" {
		return catalogPath
	}
	p := paths.CatalogPath()
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}

// loadWorkspace loads the active catalog.
func loadWorkspace() (*config.Workspace, error) {
	path := activeCatalog()
	if path == "" {
		log.Debug().Msg("No catalog installed, using the built-in one")
		ws, err := config.Builtin()
		if err != nil {
			return nil, catalogError(config.BuiltinName, err)
		}
		return ws, nil
	}

	loader, err := config.NewLoader()
	if err != nil {
		return nil, err
	}
	ws, err := loader.LoadFile(path)
	if err != nil {
		return nil, catalogError(path, err)
	}
	log.Debug().Str("catalog", path).Msg("Catalog loaded")
	return ws, nil
}

func catalogError(path string, err error) error {
	return engine.NewFatalError("invalid catalog", err).
		WithOp("load").
		WithSubject(path).
		WithCode(engine.ErrCodeCatalogInvalid)
}

// projectRoot returns the --project directory or the nearest parent of the
// working directory holding a Cargo.toml.
func projectRoot() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root, err := paths.ProjectRoot(wd)
	if err != nil {
		return "", engine.NewFatalError("not inside a project", err).
			WithOp("locate").
			WithSubject(wd).
			WithCode(engine.ErrCodeConfigMissing)
	}
	return root, nil
}

func journalFile() string {
	if journalPath != "" {
		return journalPath
	}
	return paths.JournalPath()
}
