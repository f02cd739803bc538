// Package tracing wraps OpenTelemetry so runners, transports and the
// control surface share one span vocabulary.  When Init is never called the
// global no-op provider is used and every span is free.
package tracing
