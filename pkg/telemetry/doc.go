// Package telemetry sets up logging, tracing and metrics for one condep
// invocation.
//
// Logging uses zerolog, in console or JSON format. Tracing uses OpenTelemetry
// and installs the global tracer provider, so packages create spans through
// otel.Tracer without a reference to this package. Exporters are stdout and
// OTLP over gRPC. Metrics live in a private Prometheus registry; a CLI run is
// short lived, so they are written in textfile-collector format on shutdown
// instead of being served.
//
//	tel, err := telemetry.New(cfg)
//	if err != nil {
//		return err
//	}
//	defer tel.Shutdown(context.Background())
package telemetry
