package metrics

import "go.opentelemetry.io/otel/attribute"

// High-cardinality or sensitive labels never reach the metrics backend.
var forbiddenLabels = map[attribute.Key]struct{}{
	"account_id": {},
	"email":      {},
	"event_id":   {},
}

// FilterAttributes drops forbidden labels from the attribute set.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := forbiddenLabels[attr.Key]; ok {
			continue
		}
		out = append(out, attr)
	}
	return out
}
