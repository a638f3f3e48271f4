package middlewares

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
)

const TxnIDHeader = "X-Txn-ID"

type responseWriterEx struct {
	http.ResponseWriter

	statusCode       int
	size             int
	logData          bool
	ctx              context.Context
	hasLoggedHeaders bool
}

func newResponseWriterEx(ctx context.Context, logData bool, rw http.ResponseWriter) *responseWriterEx {
	return &responseWriterEx{
		ResponseWriter: rw,
		statusCode:     http.StatusOK,
		logData:        logData,
		ctx:            ctx,
	}
}

func (rw *responseWriterEx) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriterEx) Write(b []byte) (int, error) {
	if rw.logData && !rw.hasLoggedHeaders {
		logging.Logger(rw.ctx).Debugf("response headers: %+v", rw.ResponseWriter.Header())
		rw.hasLoggedHeaders = true
	}

	size, err := rw.ResponseWriter.Write(b)
	rw.size += size

	if err == nil && rw.logData {
		logging.Logger(rw.ctx).Debugf("wrote %d bytes: %s", size, b[:size])
	}
	return size, err
}

// loggingReader logs every read of a request body
type loggingReader struct {
	io.ReadCloser
	ctx context.Context
}

func (lr loggingReader) Read(b []byte) (size int, err error) {
	size, err = lr.ReadCloser.Read(b)
	if size > 0 {
		logging.Logger(lr.ctx).Debugf("read %d bytes: %s", size, b[:size])
	}

	return size, err
}

// LoggingMw gives each request a transaction ID and writes an audit record
// when it completes.  Requests for quiet paths are audited at debug level.
type LoggingMw struct {
	logRequests bool
	quiet       map[string]bool
	next        http.Handler
}

func NewLoggingMw(logRequests bool, quietPaths ...string) mux.MiddlewareFunc {
	quiet := make(map[string]bool, len(quietPaths))
	for _, p := range quietPaths {
		quiet[p] = true
	}

	return func(next http.Handler) http.Handler {
		return &LoggingMw{next: next, logRequests: logRequests, quiet: quiet}
	}
}

func (mw *LoggingMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	ctx := logging.NewTxn(r.Context())
	txnID := logging.TxnID(ctx)
	r = r.WithContext(ctx)

	// before anything writes the body
	rw.Header().Set(TxnIDHeader, txnID)

	if mw.logRequests {
		logging.Logger(ctx).Debugf("request headers: %+v", r.Header)
		r.Body = loggingReader{ReadCloser: r.Body, ctx: ctx}
	}

	rwex := newResponseWriterEx(ctx, mw.logRequests, rw)
	mw.next.ServeHTTP(rwex, r)

	entry := logging.Logger(ctx).WithFields(logrus.Fields{
		"entrytype": "audit",
		"status":    rwex.statusCode,
		"method":    r.Method,
		"proto":     r.Proto,
		"host":      r.Host,
		"remote":    r.RemoteAddr,
		"start":     startTime.Format(time.RFC3339Nano),
		"duration":  time.Since(startTime),
		"path":      r.URL.String(),
		"size":      rwex.size,
	})

	if mw.quiet[r.URL.Path] && rwex.statusCode < 400 {
		entry.Debug(http.StatusText(rwex.statusCode))
		return
	}
	entry.Info(http.StatusText(rwex.statusCode))
}
