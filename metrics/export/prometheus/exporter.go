// Package prometheus renders engine metrics in the Prometheus text
// exposition format without pulling in a client library.
package prometheus

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/taskhive/authstack"
)

// Handler serves the counters of m under namespace_ prefixed names.
func Handler(m *authstack.Metrics, namespace string) http.Handler {
	if namespace == "" {
		namespace = "authstack"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		var b strings.Builder
		render(&b, m, namespace)
		_, _ = w.Write([]byte(b.String()))
	})
}

func render(b *strings.Builder, m *authstack.Metrics, ns string) {
	snap := m.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		full := ns + "_" + name + "_total"
		fmt.Fprintf(b, "# TYPE %s counter\n", full)
		fmt.Fprintf(b, "%s %d\n", full, snap[name])
	}

	hist := m.ValidateLatency()
	full := ns + "_validate_latency_seconds"
	fmt.Fprintf(b, "# TYPE %s histogram\n", full)
	for i, ub := range hist.UpperBoundsMicros {
		fmt.Fprintf(b, "%s_bucket{le=\"%g\"} %d\n", full, float64(ub)/1e6, hist.CumulativeCounts[i])
	}
	fmt.Fprintf(b, "%s_bucket{le=\"+Inf\"} %d\n", full, hist.Count)
	fmt.Fprintf(b, "%s_sum %g\n", full, float64(hist.SumMicros)/1e6)
	fmt.Fprintf(b, "%s_count %d\n", full, hist.Count)
}
