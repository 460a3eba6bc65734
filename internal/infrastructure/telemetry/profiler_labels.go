package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// WithProfilingLabels runs fn with pprof labels so its samples can be
// filtered in Pyroscope. Keep labels low-cardinality: platform and
// operation, never merchant or product ids.
//
//	telemetry.WithProfilingLabels(ctx, OperationLabels("sync.catalog", "salla"), func(ctx context.Context) {
//	    stats, err = reconciler.Run(ctx, session)
//	})
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels builds the standard label set for a unit of work.
func OperationLabels(operation, platform string) map[string]string {
	labels := map[string]string{"operation": operation}
	if platform != "" {
		labels["platform"] = platform
	}
	return labels
}

// sanitizeLabels returns sorted key, value pairs with empty entries dropped.
func sanitizeLabels(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k, v := range labels {
		if sanitizeLabelKey(k) != "" && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		pairs = append(pairs, sanitizeLabelKey(k), labels[k])
	}
	return pairs
}

// sanitizeLabelKey maps a key onto [a-z0-9_].
func sanitizeLabelKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(key)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '.', r == '-', r == ' ':
			b.WriteByte('_')
		}
	}
	return b.String()
}
