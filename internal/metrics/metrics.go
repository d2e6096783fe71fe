package metrics

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ledgerRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finlog_ledger_records_total",
		Help: "Total number of history records appended, by action and entity type",
	}, []string{"action", "entity"})
	ledgerUndoTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finlog_ledger_undo_total",
		Help: "Total number of undo attempts, by result",
	}, []string{"result"})
	ledgerPrunedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finlog_ledger_pruned_total",
		Help: "Total number of history records removed by retention",
	})
	httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finlog_http_requests_total",
		Help: "Total number of HTTP requests handled, by method and status",
	}, []string{"method", "status"})
)

// Register registers Prometheus collectors. Call once at startup.
func Register(registry *prometheus.Registry) {
	registry.MustRegister(ledgerRecordsTotal, ledgerUndoTotal, ledgerPrunedTotal, httpRequestsTotal)
}

// IncRecord counts an appended history record.
func IncRecord(action, entity string) { ledgerRecordsTotal.WithLabelValues(action, entity).Inc() }

// IncUndo counts an undo attempt; result is "ok" or an error class.
func IncUndo(result string) { ledgerUndoTotal.WithLabelValues(result).Inc() }

// AddPruned counts records removed by retention.
func AddPruned(n int64) {
	if n > 0 {
		ledgerPrunedTotal.Add(float64(n))
	}
}

// Middleware counts every handled request.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		httpRequestsTotal.WithLabelValues(c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) gin.HandlerFunc {
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Status(http.StatusMethodNotAllowed)
			return
		}
		h.ServeHTTP(c.Writer, c.Request)
	}
}
