package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sitesweep/sitesweep-backend/sitesweep-service/metrics"
)

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newStatusResponseWriter(w http.ResponseWriter) *statusResponseWriter {
	return &statusResponseWriter{w, http.StatusOK}
}

func (srw *statusResponseWriter) WriteHeader(code int) {
	srw.statusCode = code
	srw.ResponseWriter.WriteHeader(code)
}

func PrometheusMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := mux.CurrentRoute(r)
		// The path template keeps cardinality bounded; raw URLs would
		// create a label value per table name.
		path, _ := route.GetPathTemplate()
		now := time.Now()

		srw := newStatusResponseWriter(w)
		next.ServeHTTP(srw, r)

		elapsedSeconds := time.Since(now).Seconds()
		status := strconv.Itoa(srw.statusCode)

		metrics.TotalRequests.WithLabelValues(path, status, r.Method).Inc()
		metrics.HttpDuration.WithLabelValues(path, status, r.Method).Observe(elapsedSeconds)
	})
}
