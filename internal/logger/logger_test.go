package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddlewareLogsStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Middleware(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/properties/1/scores", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "http request", entry.Message)
	assert.EqualValues(t, http.StatusTeapot, entry.ContextMap()["status"])
	assert.Equal(t, "/properties/1/scores", entry.ContextMap()["path"])
}

func TestLeveledSatisfiesRetryableLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	var l retryablehttp.LeveledLogger = NewLeveled(zap.New(core))
	l.Warn("retrying", "attempt", 2)
	require.Equal(t, 1, logs.Len())
	assert.EqualValues(t, 2, logs.All()[0].ContextMap()["attempt"])
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}
