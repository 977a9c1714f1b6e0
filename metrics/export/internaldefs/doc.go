// Package internaldefs holds the shared metric name table consumed by the
// prometheus and otel exporters. Exporter-facing only; application code
// should not import it.
package internaldefs
