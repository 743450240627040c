package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard-home", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, 1, logs.FilterMessage("http_request").Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()

	assert.Equal(t, zapcore.InfoLevel, entry.Level)
	assert.Equal(t, "/dashboard-home", fields["path"])
	assert.EqualValues(t, http.StatusTemporaryRedirect, fields["status"])
	assert.Equal(t, "/login", fields["location"])
}

func TestRequestLoggerServerError(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	handler := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/x", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestNew(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger, err := New(debug)
		require.NoError(t, err)
		assert.Equal(t, debug, logger.Core().Enabled(zapcore.DebugLevel))
	}
}
