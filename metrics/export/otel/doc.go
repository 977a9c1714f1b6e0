// Package otel bridges authcore metrics into an OpenTelemetry meter.
//
// [NewOTelExporter] registers observable instruments that pull from the
// engine's snapshot on every collection cycle; nothing is pushed from the
// hot path. Close unregisters the callback.
package otel
