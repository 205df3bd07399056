package telemetry

// Config holds OpenTelemetry tracing configuration for the agent.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Insecure       bool
	SampleRate     float64
}

// DefaultConfig returns the tracing defaults used when a config file omits
// the telemetry block entirely.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "edgelogd",
		ServiceVersion: "dev",
		Endpoint:       "localhost:4317",
		Insecure:       true,
		SampleRate:     1.0,
	}
}

// ProfilingConfig holds Pyroscope continuous-profiling configuration.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	ProfileTypes   []string
}
