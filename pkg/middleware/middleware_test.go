package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	debug, errors []map[string]interface{}
}

func fields(kv []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i].(string)] = kv[i+1]
	}
	return out
}

func (l *recordingLogger) Debugw(_ string, kv ...interface{}) { l.debug = append(l.debug, fields(kv)) }
func (l *recordingLogger) Errorw(_ string, kv ...interface{}) { l.errors = append(l.errors, fields(kv)) }

func TestLoggerMiddleware(t *testing.T) {
	log := &recordingLogger{}
	h := LoggerMiddleware(log, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics?x=1", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Len(t, log.debug, 1)
	assert.Equal(t, http.StatusOK, log.debug[0]["status"])
	assert.Equal(t, "/metrics?x=1", log.debug[0]["path"])

	require.Len(t, log.errors, 1)
	assert.Equal(t, http.StatusServiceUnavailable, log.errors[0]["status"])
}
