package profiling

import (
	"log/slog"

	"bvgboard/pkg/env"
	bvgotel "bvgboard/pkg/otel"

	"github.com/grafana/pyroscope-go"
)

// InitProfiling starts continuous profiling when PYROSCOPE_PROFILING_ENABLED is set.
// Profiling is best effort; a failing profiler never blocks startup.
func InitProfiling() (func(), error) {
	if !env.IsTrue(env.Get("PYROSCOPE_PROFILING_ENABLED", "false")) {
		slog.Debug("Pyroscope profiling is disabled")
		return func() {}, nil
	}

	config := buildConfig()

	profiler, err := pyroscope.Start(config)
	if err != nil {
		slog.Warn("Failed to start Pyroscope profiler", "error", err)
		return func() {}, nil
	}

	slog.Debug("Pyroscope profiling started", "server", config.ServerAddress, "application", config.ApplicationName)

	return func() {
		if err := profiler.Stop(); err != nil {
			slog.Error("Error stopping Pyroscope profiler", "error", err)
		} else {
			slog.Debug("Pyroscope profiler stopped")
		}
	}, nil
}

func buildConfig() pyroscope.Config {
	config := pyroscope.Config{
		ApplicationName: env.Get("PYROSCOPE_APPLICATION_NAME", bvgotel.ServiceName),
		ServerAddress:   env.Get("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040"),
		Logger:          pyroscope.StandardLogger,
		Tags: map[string]string{
			"service": bvgotel.ServiceName,
			"version": bvgotel.Version,
		},
		// CPU and heap only
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
		},
	}

	user := env.Get("PYROSCOPE_BASIC_AUTH_USER", "")
	password := env.Get("PYROSCOPE_BASIC_AUTH_PASSWORD", "")
	if user != "" && password != "" {
		config.BasicAuthUser = user
		config.BasicAuthPassword = password
	}

	return config
}
