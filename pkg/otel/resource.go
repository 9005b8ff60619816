package otel

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"bvgboard/pkg/env"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ServiceName is the name of this service
const ServiceName = "bvgboard"

// Version is set at build time via -ldflags
// e.g., go build -ldflags="-X bvgboard/pkg/otel.Version=1.2.3"
var Version = "dev"

// serviceInstanceID prefers OTEL_SERVICE_INSTANCE_ID, then the hostname
// (the device name on a Kindle), then the process ID.
func serviceInstanceID() string {
	if id := os.Getenv("OTEL_SERVICE_INSTANCE_ID"); id != "" {
		return id
	}
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return fmt.Sprintf("%s-%d", ServiceName, os.Getpid())
}

// NewResource creates the resource shared by the tracing and metrics providers.
func NewResource() (*resource.Resource, error) {
	return resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(Version),
			semconv.ServiceNamespace(env.Get("OTEL_SERVICE_NAMESPACE", "bvg")),
			semconv.ServiceInstanceID(serviceInstanceID()),
			semconv.DeploymentEnvironment(env.Get("OTEL_DEPLOYMENT_ENVIRONMENT", "device")),
			semconv.ProcessRuntimeName("go"),
			semconv.ProcessRuntimeVersion(runtime.Version()),
			semconv.TelemetrySDKName("opentelemetry"),
			semconv.TelemetrySDKLanguageGo,
		),
	)
}
