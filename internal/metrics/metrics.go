package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы запроса миниатюры.
const (
	OutcomeHit       = "hit"
	OutcomeMiss      = "miss"
	OutcomeCoalesced = "coalesced"
	OutcomeInvalid   = "invalid"
)

// Результаты загрузки миниатюры.
const (
	ResultSuccess   = "success"
	ResultTransport = "transport_error"
	ResultDecode    = "decode_error"
	ResultCancelled = "cancelled"
	ResultDiscarded = "discarded"
)

// Результаты запроса списка статей.
const (
	ListSuccess = "success"
	ListError   = "error"
	ListStale   = "stale"
)

// Metrics группирует коллекторы кеша миниатюр и контроллера списка.
// Нулевой указатель допустим: все методы на nil ничего не делают.
type Metrics struct {
	imageRequests    *prometheus.CounterVec
	imageFetches     *prometheus.CounterVec
	imageEntries     prometheus.Gauge
	imagePending     prometheus.Gauge
	imageEvictions   prometheus.Counter
	listFetches      *prometheus.CounterVec
	listTransitions  *prometheus.CounterVec
	listFetchSeconds prometheus.Histogram
}

// New создаёт коллекторы и регистрирует их в reg. При reg == nil регистрация пропускается.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		imageRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "articlewave",
			Subsystem: "image_cache",
			Name:      "requests_total",
			Help:      "Image fetch requests by outcome (hit, miss, coalesced, invalid).",
		}, []string{"outcome"}),
		imageFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "articlewave",
			Subsystem: "image_cache",
			Name:      "fetches_total",
			Help:      "Completed network fetches by result.",
		}, []string{"result"}),
		imageEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "articlewave",
			Subsystem: "image_cache",
			Name:      "entries",
			Help:      "Number of decoded images held in memory.",
		}),
		imagePending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "articlewave",
			Subsystem: "image_cache",
			Name:      "pending",
			Help:      "Number of in-flight image fetches.",
		}),
		imageEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "articlewave",
			Subsystem: "image_cache",
			Name:      "evictions_total",
			Help:      "Entries evicted by the optional size bound.",
		}),
		listFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "articlewave",
			Subsystem: "list",
			Name:      "fetches_total",
			Help:      "Article list fetches by country and result.",
		}, []string{"country", "result"}),
		listTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "articlewave",
			Subsystem: "list",
			Name:      "transitions_total",
			Help:      "List state transitions by target state.",
		}, []string{"state"}),
		listFetchSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "articlewave",
			Subsystem: "list",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of article source calls.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.imageRequests,
			m.imageFetches,
			m.imageEntries,
			m.imagePending,
			m.imageEvictions,
			m.listFetches,
			m.listTransitions,
			m.listFetchSeconds,
		)
	}
	return m
}

func (m *Metrics) ImageRequest(outcome string) {
	if m == nil {
		return
	}
	m.imageRequests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ImageFetched(result string) {
	if m == nil {
		return
	}
	m.imageFetches.WithLabelValues(result).Inc()
}

// ImageSizes обновляет размеры кеша и очереди загрузок.
func (m *Metrics) ImageSizes(entries, pending int) {
	if m == nil {
		return
	}
	m.imageEntries.Set(float64(entries))
	m.imagePending.Set(float64(pending))
}

func (m *Metrics) ImageEvicted() {
	if m == nil {
		return
	}
	m.imageEvictions.Inc()
}

// ListFetched учитывает вызов источника статей и его длительность.
func (m *Metrics) ListFetched(country, result string, seconds float64) {
	if m == nil {
		return
	}
	m.listFetches.WithLabelValues(country, result).Inc()
	m.listFetchSeconds.Observe(seconds)
}

func (m *Metrics) Transition(state string) {
	if m == nil {
		return
	}
	m.listTransitions.WithLabelValues(state).Inc()
}
