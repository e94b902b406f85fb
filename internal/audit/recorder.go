package audit

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/brizzai/auth-gateway/internal/config"
	"github.com/brizzai/auth-gateway/internal/proxy"
	"github.com/brizzai/auth-gateway/internal/session"
	"github.com/brizzai/auth-gateway/internal/store"
)

// maxCapturedBody caps how much of a mutating request body lands in the
// audit row.
const maxCapturedBody = 64 << 10

type errorContextKey string

const errorKey errorContextKey = "audit_error"

type errorSlot struct {
	message string
}

// CaptureError records a handler failure for the request's audit row.
func CaptureError(ctx context.Context, message string) {
	if slot, ok := ctx.Value(errorKey).(*errorSlot); ok {
		slot.message = message
	}
}

// Recorder is the audit middleware: it captures the request on the way in,
// lets handlers and the proxy annotate it, and enqueues the assembled row on
// the way out.
type Recorder struct {
	dispatcher *Dispatcher
	prefix     string
}

// NewRecorder creates the audit middleware.
func NewRecorder(dispatcher *Dispatcher, cfg *config.Config) *Recorder {
	return &Recorder{
		dispatcher: dispatcher,
		prefix:     cfg.Audit.PathPrefix,
	}
}

// statusWriter captures the status code written by the handler. A handler
// that never calls WriteHeader leaves status 0; the recorder defaults it.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

func hasMutatingBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Middleware records one audit row per request under the configured path
// prefix. Must run inside the session middleware so the row can carry the
// session id and user sub.
func (rec *Recorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, rec.prefix) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()

		var requestBody string
		if hasMutatingBody(r.Method) && r.Body != nil {
			captured, err := io.ReadAll(io.LimitReader(r.Body, maxCapturedBody))
			if err == nil {
				requestBody = string(captured)
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(captured), r.Body))
			}
		}

		slot := &errorSlot{}
		ctx := context.WithValue(r.Context(), errorKey, slot)
		ctx, trace := proxy.WithTrace(ctx)

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		row := store.RequestLogRow{
			Method:      r.Method,
			URL:         r.URL.RequestURI(),
			StatusCode:  sw.status,
			RequestBody: requestBody,
			Error:       slot.message,
			DurationMs:  time.Since(start).Milliseconds(),
		}
		if row.StatusCode == 0 {
			row.StatusCode = http.StatusOK
		}

		if sess := session.FromContext(ctx); sess != nil {
			row.SessionID = sess.ID()
			if user := sess.User(); user != nil {
				row.UserSub = user.Sub
			}
		}

		if call := trace.Last(); call != nil {
			row.DownstreamURL = call.URL
			row.DownstreamMethod = call.Method
			row.DownstreamStatusCode = call.StatusCode
			row.DownstreamRequestBody = call.RequestBody
			row.DownstreamResponseBody = call.ResponseBody
			row.DownstreamDurationMs = call.DurationMs
		}

		rec.dispatcher.Enqueue(row)
	})
}
