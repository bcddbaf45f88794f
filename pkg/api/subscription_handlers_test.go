package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSubscription(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, activeSubscription("base-1", 4))

	w := env.do(http.MethodGet, "/v1/tenants/base-1/subscription", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 4, decode[billing.Subscription](t, w).MemberLimit)

	w = env.do(http.MethodGet, "/v1/tenants/base-2/subscription", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListSubscriptions(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, activeSubscription("base-1", 4))
	expired := activeSubscription("base-2", 4)
	expired.Status = billing.SubscriptionStatusExpired
	env.seedSubscription(t, expired)

	all := decode[ListResponse[*billing.Subscription]](t, env.do(http.MethodGet, "/v1/subscriptions", "", nil))
	assert.Equal(t, 2, all.Count)

	active := decode[ListResponse[*billing.Subscription]](t, env.do(http.MethodGet, "/v1/subscriptions?status=active", "", nil))
	require.Equal(t, 1, active.Count)
	assert.Equal(t, "base-1", active.Items[0].TenantID)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/v1/subscriptions?status=paused", "", nil).Code)
}

func TestAdjustEndDates(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, activeSubscription("base-1", 4))
	env.seedSubscription(t, activeSubscription("base-2", 8))

	w := env.do(http.MethodPost, "/v1/subscriptions/end-date",
		`{"tenant_ids":["base-1","base-2","base-unknown"],"end_date":"2024-12-31"}`, operator("ana"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[AdjustEndDatesResponse](t, w)
	assert.Equal(t, 2, resp.Updated)
	assert.Equal(t, "2024-12-31", resp.EndDate)
	assert.Empty(t, resp.Errors)

	for _, tenantID := range []string{"base-1", "base-2"} {
		sub := decode[billing.Subscription](t, env.do(http.MethodGet, "/v1/tenants/"+tenantID+"/subscription", "", nil))
		assert.True(t, time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC).Equal(sub.EndDate), tenantID)
	}

	t.Run("invariant violation", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/subscriptions/end-date", `{"tenant_ids":["base-1"],"end_date":"2020-01-01"}`, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

		sub := decode[billing.Subscription](t, env.do(http.MethodGet, "/v1/tenants/base-1/subscription", "", nil))
		assert.Equal(t, 2024, sub.EndDate.Year(), "failed tenant is left unchanged")
	})

	t.Run("partial failure", func(t *testing.T) {
		late := activeSubscription("base-3", 1)
		late.StartDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		late.EndDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		env.seedSubscription(t, late)

		w := env.do(http.MethodPost, "/v1/subscriptions/end-date", `{"tenant_ids":["base-1","base-3"],"end_date":"2025-01-31"}`, nil)
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[AdjustEndDatesResponse](t, w)
		assert.Equal(t, 1, resp.Updated)
		assert.Contains(t, resp.Errors, "base-3")
	})

	t.Run("bad requests", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/v1/subscriptions/end-date", `{"tenant_ids":[],"end_date":"2024-12-31"}`, nil).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/v1/subscriptions/end-date", `{"tenant_ids":["base-1"]}`, nil).Code)
		assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPost, "/v1/subscriptions/end-date", `{"tenant_ids":["base-1"],"end_date":"31/12/2024"}`, nil).Code)
	})
}
