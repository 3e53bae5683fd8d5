// Package metrics holds the prometheus collectors exported by the indexer processes.
// Every recorder is nil-safe so callers can run without a registry.
package metrics

const namespace = "lpi"

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
