package middleware

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/observability"
	"github.com/platinummonkey/basekeeper/pkg/storage"
	"github.com/platinummonkey/basekeeper/pkg/storage/memory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingHandler creates a payment id per call
func countingHandler(calls *int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(calls, 1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", fmt.Sprintf("/v1/payments/pay-%d", n))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":"pay-%d","echo":%q}`, n, string(body))
	})
}

func postPayment(handler http.Handler, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/payments", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestIdempotencyMiddleware_ReplaysResponse(t *testing.T) {
	var calls int32
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	handler := IdempotencyMiddleware(memory.NewIdempotencyCache(10, time.Hour), metrics)(countingHandler(&calls))

	first := postPayment(handler, "key-1", `{"tenant_id":"base-1"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get(IdempotentReplayedHeader))

	second := postPayment(handler, "key-1", `{"tenant_id":"base-1"}`)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotentReplayedHeader))
	assert.Equal(t, "/v1/payments/pay-1", second.Header().Get("Location"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.IdempotentReplaysTotal))
}

func TestIdempotencyMiddleware_KeyReusedWithDifferentBody(t *testing.T) {
	var calls int32
	handler := IdempotencyMiddleware(memory.NewIdempotencyCache(10, time.Hour), nil)(countingHandler(&calls))

	postPayment(handler, "key-1", `{"tenant_id":"base-1"}`)
	w := postPayment(handler, "key-1", `{"tenant_id":"base-2"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "idempotency_key_reused")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_PassThrough(t *testing.T) {
	var calls int32
	handler := IdempotencyMiddleware(memory.NewIdempotencyCache(10, time.Hour), nil)(countingHandler(&calls))

	t.Run("no key", func(t *testing.T) {
		postPayment(handler, "", `{}`)
		postPayment(handler, "", `{}`)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("not a POST", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest(http.MethodDelete, "/v1/payments/pay-1", nil)
			req.Header.Set(IdempotencyKeyHeader, "key-2")
			handler.ServeHTTP(httptest.NewRecorder(), req)
		}
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})
}

func TestIdempotencyMiddleware_DoesNotStoreServerErrors(t *testing.T) {
	var calls int32
	handler := IdempotencyMiddleware(memory.NewIdempotencyCache(10, time.Hour), nil)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusCreated)
		}))

	assert.Equal(t, http.StatusInternalServerError, postPayment(handler, "key-1", `{}`).Code)
	assert.Equal(t, http.StatusCreated, postPayment(handler, "key-1", `{}`).Code)
	assert.Equal(t, http.StatusCreated, postPayment(handler, "key-1", `{}`).Code)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_ScopedByPath(t *testing.T) {
	var calls int32
	handler := IdempotencyMiddleware(memory.NewIdempotencyCache(10, time.Hour), nil)(countingHandler(&calls))

	postPayment(handler, "key-1", `{}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/tenants/base-1/members", strings.NewReader(`{}`))
	req.Header.Set(IdempotencyKeyHeader, "key-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(IdempotentReplayedHeader))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

type failingIdempotencyStore struct{}

func (failingIdempotencyStore) Get(ctx context.Context, key string) (*storage.CachedResponse, error) {
	return nil, errors.New("connection refused")
}

func (failingIdempotencyStore) Put(ctx context.Context, key string, resp *storage.CachedResponse) (bool, error) {
	return false, errors.New("connection refused")
}

func TestIdempotencyMiddleware_StoreUnavailable(t *testing.T) {
	var calls int32
	handler := IdempotencyMiddleware(failingIdempotencyStore{}, nil)(countingHandler(&calls))

	w := postPayment(handler, "key-1", `{}`)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestIdempotencyMiddleware_KeyTooLong(t *testing.T) {
	var calls int32
	handler := IdempotencyMiddleware(memory.NewIdempotencyCache(10, time.Hour), nil)(countingHandler(&calls))

	w := postPayment(handler, strings.Repeat("k", maxIdempotencyKeyLength+1), `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
