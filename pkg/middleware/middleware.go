package middleware

import (
	"net/http"
	"time"
)

type requestLogger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggerMiddleware logs every request; scrapes and probes are frequent, so
// successful requests go to debug.
func LoggerMiddleware(logger requestLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		path := req.URL.Path
		if raw := req.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		logFields := []interface{}{
			"status", rec.status,
			"latency", time.Since(start),
			"client_ip", req.RemoteAddr,
			"method", req.Method,
			"path", path,
		}

		if rec.status >= http.StatusInternalServerError {
			logger.Errorw("HTTP Request", logFields...)
		} else {
			logger.Debugw("HTTP Request", logFields...)
		}
	})
}
