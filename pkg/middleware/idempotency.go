package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/httputil"
	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/storage"
)

const (
	// IdempotencyKeyHeader carries the client-chosen key of a retriable request
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader marks a response served from the idempotency store
	IdempotentReplayedHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// replayedHeaders are copied from the original response into the stored one
var replayedHeaders = []string{"Content-Type", "Location"}

// IdempotencyMiddleware makes POST requests carrying an Idempotency-Key
// header safe to retry. The first response below 500 is stored under the key
// and replayed for later requests with the same key, method, path and body.
// Reusing a key for a different body is rejected with 422.
//
// Two identical requests racing on an unseen key both reach the handler; only
// the first response is stored.
func IdempotencyMiddleware(store storage.IdempotencyStore, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if r.Method != http.MethodPost || key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				httputil.WriteBadRequest(w, fmt.Sprintf("%s must be at most %d characters", IdempotencyKeyHeader, maxIdempotencyKeyLength))
				return
			}

			logger := observability.FromContext(r.Context()).WithField("idempotency_key", key)

			body, err := io.ReadAll(r.Body)
			if err != nil {
				httputil.WriteBadRequest(w, "failed to read request body")
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := requestHash(r, body)
			storeKey := fmt.Sprintf("%s:%s:%s", r.Method, r.URL.Path, key)

			cached, err := store.Get(r.Context(), storeKey)
			if err != nil {
				logger.WithError(err).Error("Failed to read idempotency store")
				httputil.WriteServiceUnavailable(w, "idempotency store unavailable")
				return
			}
			if cached != nil {
				if cached.RequestHash != hash {
					httputil.WriteCodedError(w, http.StatusUnprocessableEntity, "idempotency_key_reused",
						errors.New("idempotency key was already used with a different request"), nil)
					return
				}
				metrics.RecordIdempotentReplay()
				logger.Debug("Replaying stored response")
				replay(w, cached)
				return
			}

			rec := &recordingWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= http.StatusInternalServerError {
				return
			}

			resp := &storage.CachedResponse{
				StatusCode:  rec.statusCode,
				Header:      http.Header{},
				Body:        rec.body.Bytes(),
				RequestHash: hash,
				StoredAt:    time.Now().UTC(),
			}
			for _, name := range replayedHeaders {
				if v := w.Header().Get(name); v != "" {
					resp.Header.Set(name, v)
				}
			}

			stored, err := store.Put(r.Context(), storeKey, resp)
			if err != nil {
				logger.WithError(err).Warn("Failed to store idempotent response")
				return
			}
			if !stored {
				logger.Debug("Idempotency key stored by a concurrent request")
			}
		})
	}
}

func requestHash(r *http.Request, body []byte) string {
	h := sha256.New()
	h.Write([]byte(r.Method))
	h.Write([]byte{'\n'})
	h.Write([]byte(r.URL.Path))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func replay(w http.ResponseWriter, cached *storage.CachedResponse) {
	for name, values := range cached.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set(IdempotentReplayedHeader, "true")
	w.WriteHeader(cached.StatusCode)
	w.Write(cached.Body)
}

// recordingWriter passes the response through while keeping a copy
type recordingWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
	body        bytes.Buffer
}

func (rw *recordingWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.wroteHeader = true
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *recordingWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}
