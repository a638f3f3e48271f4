package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
)

func newTestRouter(h http.HandlerFunc) *mux.Router {
	r := mux.NewRouter()
	r.Use(NewCorsMw(CorsOptions([]string{"https://dash.example.com"}, "X-Correlation-ID")))
	r.Use(NewCorrelationMw("X-Correlation-ID"))
	r.Use(NewLoggingMw(true, "/healthz"))
	r.Use(NewRecoveryMw())
	r.Handle("/test", h).Methods(http.MethodGet, http.MethodOptions)
	return r
}

func TestCorrelationAndTxnID(t *testing.T) {
	var seenTxn string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		seenTxn = logging.TxnID(r.Context())
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Correlation-ID"))
	require.NotEmpty(t, seenTxn)
	assert.Equal(t, seenTxn, rec.Header().Get(TxnIDHeader))
}

func TestBadCorrelationID(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Correlation-ID", "no spaces allowed")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, badCorrelationID, rec.Header().Get("X-Correlation-ID"))
}

func TestRecovery(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), rec.Header().Get(TxnIDHeader))
}

func TestCors(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
