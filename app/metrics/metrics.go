package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RunKindIngest  = "ingest"
	RunKindDeliver = "deliver"
)

var (
	registerOnce sync.Once

	articlesStored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_articles_stored_total",
		Help: "Articles stored after summarization.",
	})

	feedErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_feed_errors_total",
		Help: "Feed sources skipped because of fetch or parse failures.",
	}, []string{"feed"})

	aiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "digest_ai_requests_total",
		Help: "Summarization requests by outcome.",
	}, []string{"status"})

	aiFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_ai_fallbacks_total",
		Help: "Articles summarized with the deterministic fallback.",
	})

	articlesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "digest_articles_delivered_total",
		Help: "Articles delivered and marked as sent.",
	})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "digest_run_duration_seconds",
		Help:    "Duration of pipeline runs.",
		Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"kind"})
)

// MustRegister registers the package collectors once.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			articlesStored,
			feedErrors,
			aiRequests,
			aiFallbacks,
			articlesDelivered,
			runDuration,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func ArticleStored() {
	articlesStored.Inc()
}

func FeedError(feed string) {
	feedErrors.WithLabelValues(feed).Inc()
}

// AIRequest records one completion attempt. status is "ok" or "error".
func AIRequest(status string) {
	aiRequests.WithLabelValues(status).Inc()
}

func AIFallback() {
	aiFallbacks.Inc()
}

func ArticlesDelivered(n int) {
	if n > 0 {
		articlesDelivered.Add(float64(n))
	}
}

func ObserveRun(kind string, started time.Time) {
	runDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}
