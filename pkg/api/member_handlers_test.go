package api

import (
	"net/http"
	"testing"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAdmission(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no subscription yet", func(t *testing.T) {
		w := env.do(http.MethodGet, "/v1/tenants/base-new/admission", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		admission := decode[billing.Admission](t, w)
		assert.True(t, admission.CanAdd)
		assert.Equal(t, billing.UnlimitedMemberLimit, admission.MemberLimit)
		assert.Equal(t, billing.ReasonNoSubscription, admission.Reason)
	})

	t.Run("limit reached", func(t *testing.T) {
		env.seedSubscription(t, activeSubscription("base-full", 2))
		env.seedMembers(t, "base-full", 2)

		admission := decode[billing.Admission](t, env.do(http.MethodGet, "/v1/tenants/base-full/admission", "", nil))
		assert.False(t, admission.CanAdd)
		assert.Equal(t, 2, admission.CurrentCount)
		assert.Equal(t, billing.ReasonMemberLimitReached, admission.Reason)
	})

	t.Run("stale active status loses to the date", func(t *testing.T) {
		sub := activeSubscription("base-stale", 10)
		sub.StartDate = testNow.AddDate(0, -2, 0)
		sub.EndDate = testNow.AddDate(0, 0, -1)
		env.seedSubscription(t, sub)

		admission := decode[billing.Admission](t, env.do(http.MethodGet, "/v1/tenants/base-stale/admission", "", nil))
		assert.False(t, admission.CanAdd)
		assert.Equal(t, billing.ReasonSubscriptionExpired, admission.Reason)
	})
}

func TestAdmitMember(t *testing.T) {
	env := newTestEnv(t)
	env.seedSubscription(t, activeSubscription("base-1", 2))

	for i, name := range []string{"Ana", "Bruno"} {
		w := env.do(http.MethodPost, "/v1/tenants/base-1/members", `{"name":"`+name+`"}`, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		resp := decode[AdmitMemberResponse](t, w)
		assert.NotEmpty(t, resp.Member.ID)
		assert.Equal(t, "base-1", resp.Member.TenantID)
		assert.Equal(t, members.StatusApproved, resp.Member.Status)
		assert.Equal(t, i, resp.Admission.CurrentCount)
	}

	w := env.do(http.MethodPost, "/v1/tenants/base-1/members", `{"name":"Carla"}`, nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)

	body := decode[struct {
		Code    string            `json:"code"`
		Details billing.Admission `json:"details"`
	}](t, w)
	assert.Equal(t, CodeAdmissionDenied, body.Code)
	assert.False(t, body.Details.CanAdd)
	assert.Equal(t, 2, body.Details.CurrentCount)
	assert.Equal(t, 2, body.Details.MemberLimit)

	t.Run("name is required", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/tenants/base-2/members", `{"email":"x@example.org"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown status", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/tenants/base-2/members", `{"name":"Dani","status":"vip"}`, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
