package api

import (
	"net/http"
	"strings"
)

// requestBodySizeLimitMiddleware rejects request bodies larger than
// maxBytes. A request whose Content-Length already exceeds the limit is
// rejected immediately; otherwise the body is wrapped in an
// http.MaxBytesReader and, if the downstream handler's read hits that
// limit and it reports the failure as a 400 (the common shape for a JSON
// decode error), the response is rewritten to 413 so clients can
// distinguish "body too large" from "body malformed." A 400 emitted for
// any other reason — ordinary request validation — passes through
// unchanged.
func requestBodySizeLimitMiddleware(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			exceeded := new(bool)
			r.Body = &limitTrackingBody{inner: http.MaxBytesReader(w, r.Body, maxBytes), exceeded: exceeded}

			bw := &bodySizeResponseWriter{ResponseWriter: w, exceeded: exceeded}
			next.ServeHTTP(bw, r)
		})
	}
}

// limitTrackingBody wraps the reader returned by http.MaxBytesReader and
// records whether a read ever failed because the limit was hit.
type limitTrackingBody struct {
	inner    interface {
		Read([]byte) (int, error)
		Close() error
	}
	exceeded *bool
}

func (b *limitTrackingBody) Read(p []byte) (int, error) {
	n, err := b.inner.Read(p)
	if err != nil && strings.Contains(err.Error(), "request body too large") {
		*b.exceeded = true
	}
	return n, err
}

func (b *limitTrackingBody) Close() error {
	return b.inner.Close()
}

// bodySizeResponseWriter rewrites a 400 status to 413 if the handler's
// read previously hit the body size limit.
type bodySizeResponseWriter struct {
	http.ResponseWriter
	exceeded    *bool
	wroteHeader bool
}

func (w *bodySizeResponseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code == http.StatusBadRequest && *w.exceeded {
		code = http.StatusRequestEntityTooLarge
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *bodySizeResponseWriter) Write(p []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(p)
}
