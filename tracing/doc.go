// Package tracing wraps OpenTelemetry so that scheduler, cache and dispatcher code can open
// spans without importing the SDK. Until Init or InitWithExporter is called spans are no-op.
package tracing
