// 包 metrics：Prometheus 指标定义与暴露
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pleiades_http_requests_total",
		Help: "Outbound requests to the gazetteer by method and status",
	}, []string{"method", "status"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pleiades_http_duration_ms",
		Help:    "Outbound request duration in milliseconds",
		Buckets: []float64{5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000},
	}, []string{"method"})
	HTTPErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pleiades_http_errors_total",
		Help: "Outbound requests that failed before a response arrived",
	}, []string{"method"})
	ResponseCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pleiades_response_cache_hits_total",
		Help: "GET responses served from the response cache",
	})
	ResponseCacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pleiades_response_cache_misses_total",
		Help: "GET responses not found in the response cache",
	})
	RobotsDeniedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pleiades_robots_denied_total",
		Help: "Requests refused by robots.txt policy",
	})
	PlaceCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pleiades_place_cache_hits_total",
		Help: "get_place calls answered from the place cache",
	})
	PlaceFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pleiades_place_fetch_total",
		Help: "Place payload fetches by outcome",
	}, []string{"outcome"})
	IndexUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pleiades_index_updates_total",
		Help: "Index update calls by index and outcome",
	}, []string{"index", "outcome"})
	SearchRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pleiades_search_requests_total",
		Help: "Gazetteer searches by outcome",
	}, []string{"outcome"})
	APIRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pleiades_api_requests_total",
		Help: "Inbound API requests by method and status",
	}, []string{"method", "status"})
)

func init() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPDurationMs)
	prometheus.MustRegister(HTTPErrorsTotal)
	prometheus.MustRegister(ResponseCacheHitsTotal)
	prometheus.MustRegister(ResponseCacheMissesTotal)
	prometheus.MustRegister(RobotsDeniedTotal)
	prometheus.MustRegister(PlaceCacheHitsTotal)
	prometheus.MustRegister(PlaceFetchTotal)
	prometheus.MustRegister(IndexUpdatesTotal)
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(APIRequestsTotal)
}

// Handler 暴露已注册指标，供 /metrics 挂载
func Handler() http.Handler { return promhttp.Handler() }
