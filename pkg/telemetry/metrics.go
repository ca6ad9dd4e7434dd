package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what a condep invocation did. A nil *Metrics, or one built
// with metrics disabled, ignores every call.
type Metrics struct {
	config MetricsConfig

	envResolved    *prometheus.CounterVec
	envUnresolved  prometheus.Counter
	dumps          *prometheus.CounterVec
	links          *prometheus.CounterVec
	filesCopied    *prometheus.CounterVec
	remoteCommands *prometheus.CounterVec
	deploys        *prometheus.CounterVec
	deployDuration *prometheus.HistogramVec
	errorsByClass  *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		envResolved: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "env_resolved_total",
				Help:      "Environment variables set from a profile",
			},
			[]string{"action"},
		),
		envUnresolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "env_unresolved_total",
				Help:      "Environment variables for which no candidate matched",
			},
		),
		dumps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "env_dumps_total",
				Help:      "Dump files sourced",
			},
			[]string{"result"},
		),
		links: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "links_total",
				Help:      "Links created in the working directory",
			},
			[]string{"result"},
		),
		filesCopied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "files_copied_total",
				Help:      "Files copied to the device",
			},
			[]string{"category"},
		),
		remoteCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_commands_total",
				Help:      "Commands run on the device",
			},
			[]string{"result"},
		),
		deploys: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "deploys_total",
				Help:      "Deploys by final stage",
			},
			[]string{"stage"},
		),
		deployDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "deploy_duration_seconds",
				Help:      "Duration of deploys in seconds",
				Buckets:   buckets,
			},
			[]string{"stage"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Errors by class and code",
			},
			[]string{"class", "code"},
		),
	}

	registry.MustRegister(
		m.envResolved,
		m.envUnresolved,
		m.dumps,
		m.links,
		m.filesCopied,
		m.remoteCommands,
		m.deploys,
		m.deployDuration,
		m.errorsByClass,
	)

	return m, nil
}

func (m *Metrics) enabled() bool {
	return m != nil && m.registry != nil
}

// Resolution Metrics

// RecordEnvResolved counts a variable set with the given merge action.
func (m *Metrics) RecordEnvResolved(action string) {
	if !m.enabled() {
		return
	}
	m.envResolved.WithLabelValues(action).Inc()
}

// RecordEnvUnresolved counts a variable left unresolved.
func (m *Metrics) RecordEnvUnresolved() {
	if !m.enabled() {
		return
	}
	m.envUnresolved.Inc()
}

// RecordDump counts a sourced dump file.
func (m *Metrics) RecordDump(ok bool) {
	if !m.enabled() {
		return
	}
	m.dumps.WithLabelValues(result(ok)).Inc()
}

// RecordLink counts a link attempt.
func (m *Metrics) RecordLink(ok bool) {
	if !m.enabled() {
		return
	}
	m.links.WithLabelValues(result(ok)).Inc()
}

// Deploy Metrics

// RecordFileCopied counts a file copied in category.
func (m *Metrics) RecordFileCopied(category string) {
	if !m.enabled() {
		return
	}
	m.filesCopied.WithLabelValues(category).Inc()
}

// RecordRemoteCommand counts a remote command.
func (m *Metrics) RecordRemoteCommand(ok bool) {
	if !m.enabled() {
		return
	}
	m.remoteCommands.WithLabelValues(result(ok)).Inc()
}

// RecordDeploy records a finished deploy by the stage it ended in.
func (m *Metrics) RecordDeploy(stage string, duration time.Duration) {
	if !m.enabled() {
		return
	}
	m.deploys.WithLabelValues(stage).Inc()
	m.deployDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordError records an error by class and code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if !m.enabled() {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass, errorCode).Inc()
}

// Registry returns the underlying registry, nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteToTextfile writes the registry in the textfile-collector format.
func (m *Metrics) WriteToTextfile(path string) error {
	if !m.enabled() {
		return fmt.Errorf("metrics are disabled")
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
