package otel

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"bvgboard/pkg/env"
)

// Protocol represents OTLP transport protocol
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// SignalType represents the OTEL signal type
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

// ExporterConfig holds parsed OTLP exporter configuration for a signal
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

// IsTracingEnabled returns true if OTEL tracing is enabled
func IsTracingEnabled() bool {
	return env.IsTrue(env.Get("OTEL_TRACING_ENABLED", "false"))
}

// IsMetricsEnabled returns true if OTEL metrics is enabled
func IsMetricsEnabled() bool {
	return env.IsTrue(env.Get("OTEL_METRICS_ENABLED", "false"))
}

// GetExporterConfig returns the exporter configuration for a specific signal type.
// Signal-specific variables (OTEL_EXPORTER_OTLP_TRACES_*) win over the base ones.
func GetExporterConfig(signal SignalType) ExporterConfig {
	upper := strings.ToUpper(string(signal))
	lookup := func(suffix, defaultValue string) string {
		return env.GetWithFallback(
			"OTEL_EXPORTER_OTLP_"+upper+"_"+suffix,
			"OTEL_EXPORTER_OTLP_"+suffix,
			defaultValue,
		)
	}

	protocol := parseProtocol(lookup("PROTOCOL", string(ProtocolHTTPProtobuf)))
	endpoint := resolveEndpoint(signal, protocol)

	cfg := ExporterConfig{
		Endpoint:    endpoint,
		Protocol:    protocol,
		Headers:     parseHeaders(lookup("HEADERS", "")),
		Timeout:     env.Duration(lookup("TIMEOUT", "10s"), 10*time.Second),
		Compression: lookup("COMPRESSION", ""),
	}

	// Explicit setting wins, otherwise infer from the scheme
	if insecure := lookup("INSECURE", ""); insecure != "" {
		cfg.Insecure = env.IsTrue(insecure)
	} else {
		cfg.Insecure = strings.HasPrefix(endpoint, "http://")
	}

	return cfg
}

func parseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "grpc":
		return ProtocolGRPC
	case "http/json":
		return ProtocolHTTPJSON
	default:
		return ProtocolHTTPProtobuf
	}
}

// resolveEndpoint picks the signal endpoint as-is, or the base endpoint with
// the signal path appended, or the protocol default.
func resolveEndpoint(signal SignalType, protocol Protocol) string {
	upper := strings.ToUpper(string(signal))

	if e := env.Get("OTEL_EXPORTER_OTLP_"+upper+"_ENDPOINT", ""); e != "" {
		return normalizeEndpoint(e, protocol)
	}
	if e := env.Get("OTEL_EXPORTER_OTLP_ENDPOINT", ""); e != "" {
		return appendSignalPath(normalizeEndpoint(e, protocol), signal, protocol)
	}

	if protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318/v1/" + string(signal)
}

// normalizeEndpoint strips scheme and path for gRPC and adds a scheme for HTTP
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}
		return endpoint
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

func appendSignalPath(endpoint string, signal SignalType, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		return endpoint
	}

	signalPath := "/v1/" + string(signal)

	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + signalPath
	}
	if strings.HasSuffix(u.Path, signalPath) {
		return endpoint
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalPath

	return u.String()
}

// parseHeaders parses "key1=value1,key2=value2". Values keep everything after
// the first '=' so base64 credentials survive.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	for _, pair := range strings.Split(headerStr, ",") {
		pair = strings.TrimSpace(pair)
		if idx := strings.Index(pair, "="); idx > 0 {
			key := strings.TrimSpace(pair[:idx])
			headers[key] = pair[idx+1:]
			slog.Debug("Parsed OTEL header", "key", key, "value_length", len(pair)-idx-1)
		}
	}

	return headers
}
