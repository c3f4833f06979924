package commentable

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

// Store metrics are registered in the default VictoriaMetrics set and can be
// exposed with metrics.WritePrometheus.

func observeCall(op string, start time.Time, err error) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`commentable_store_calls_total{op=%q}`, op)).Inc()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`commentable_store_call_duration_seconds{op=%q}`, op)).UpdateDuration(start)
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`commentable_store_errors_total{op=%q}`, op)).Inc()
	}
}

func observePages(n int) {
	metrics.GetOrCreateCounter(`commentable_query_pages_total`).Add(n)
}

func observeResubmits(op string, n int) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`commentable_batch_resubmitted_total{op=%q}`, op)).Add(n)
}
