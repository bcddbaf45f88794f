package api

import (
	"net/http"
	"testing"

	"github.com/platinummonkey/basekeeper/pkg/billing"
	"github.com/platinummonkey/basekeeper/pkg/httputil"
	"github.com/platinummonkey/basekeeper/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// A quarterly subscription for five members
	w := env.do(http.MethodPost, "/v1/payments",
		`{"tenant_id":"base-1","type":"subscription","plan":"quarterly","member_limit":5}`, operator("ana"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub1 := decode[billing.Payment](t, w)
	assert.Equal(t, billing.PaymentStatusPending, sub1.Status)
	assert.Equal(t, 15.0, sub1.Amount)
	assert.Equal(t, "pix", sub1.PaymentMethod)
	require.NotNil(t, sub1.Metadata.Months)
	assert.Equal(t, 3, *sub1.Metadata.Months)
	assert.Equal(t, "/v1/payments/"+sub1.ID, w.Header().Get("Location"))

	pending := decode[ListResponse[*billing.Payment]](t, env.do(http.MethodGet, "/v1/payments?status=pending", "", nil))
	assert.Equal(t, 1, pending.Count)

	// Confirmation creates the subscription
	w = env.do(http.MethodPost, "/v1/payments/"+sub1.ID+"/confirm", "", operator("ana"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmation := decode[billing.Confirmation](t, w)
	assert.True(t, confirmation.Created)
	assert.Equal(t, "ana", confirmation.Payment.ConfirmedBy)
	assert.Equal(t, 5, confirmation.Subscription.MemberLimit)
	assert.Equal(t, billing.PlanQuarterly, confirmation.Subscription.Plan)
	assert.True(t, testNow.AddDate(0, 3, 0).Equal(confirmation.Subscription.EndDate))

	w = env.do(http.MethodPost, "/v1/payments/"+sub1.ID+"/confirm", "", operator("ana"))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), CodeConflict)

	// Two extra seats for the rest of the period: 92 days rounds up to 4 months
	w = env.do(http.MethodPost, "/v1/payments", `{"tenant_id":"base-1","type":"member_addition","member_count":2}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	addition := decode[billing.Payment](t, w)
	require.NotNil(t, addition.Metadata.Months)
	assert.Equal(t, 4, *addition.Metadata.Months)
	assert.Equal(t, 8.0, addition.Amount)

	w = env.do(http.MethodPost, "/v1/payments/"+addition.ID+"/confirm", `{"confirmed_by":"bruno"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	confirmation = decode[billing.Confirmation](t, w)
	assert.False(t, confirmation.Created)
	assert.Equal(t, "bruno", confirmation.Payment.ConfirmedBy)
	assert.Equal(t, 7, confirmation.Subscription.MemberLimit)

	// Confirmed payments are frozen
	w = env.do(http.MethodPatch, "/v1/payments/"+addition.ID, `{"amount":1}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	tenantPayments := decode[ListResponse[*billing.Payment]](t, env.do(http.MethodGet, "/v1/tenants/base-1/payments", "", nil))
	assert.Equal(t, 2, tenantPayments.Count)

	// Deleting the addition gives the seats back
	w = env.do(http.MethodDelete, "/v1/payments/"+addition.ID, "", operator("ana"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	sub := decode[billing.Subscription](t, env.do(http.MethodGet, "/v1/tenants/base-1/subscription", "", nil))
	assert.Equal(t, 5, sub.MemberLimit)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/v1/payments/"+addition.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/v1/payments/"+addition.ID, "", nil).Code)
}

func TestCreatePayment_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"missing tenant", `{"type":"subscription","member_limit":3}`, ""},
		{"unknown type", `{"tenant_id":"base-1","type":"donation"}`, CodeInvalidRecord},
		{"subscription without limit", `{"tenant_id":"base-1","type":"subscription"}`, CodeInvalidRecord},
		{"unknown plan", `{"tenant_id":"base-1","type":"subscription","plan":"platinum","member_limit":3}`, CodeInvalidQuote},
		{"bad start date", `{"tenant_id":"base-1","type":"subscription","member_limit":3,"start_date":"next week"}`, CodeInvalidRecord},
		{"addition without count", `{"tenant_id":"base-1","type":"member_addition"}`, CodeInvalidRecord},
		{"non-positive addition", `{"tenant_id":"base-1","type":"member_addition","member_count":0,"months":1}`, CodeInvalidQuote},
		{"negative amount", `{"tenant_id":"base-1","type":"subscription","member_limit":3,"amount":-1}`, CodeInvalidRecord},
		{"unknown field", `{"tenant_id":"base-1","type":"subscription","member_limit":3,"discount":5}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/v1/payments", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			if tt.code != "" {
				assert.Equal(t, tt.code, decode[httputil.ErrorResponse](t, w).Code)
			}
		})
	}

	all := decode[ListResponse[*billing.Payment]](t, env.do(http.MethodGet, "/v1/payments", "", nil))
	assert.Zero(t, all.Count)
}

func TestCreatePayment_Overrides(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/payments",
		`{"tenant_id":"base-1","type":"subscription","plan":"annual","member_limit":10,"start_date":"2024-04-01","amount":99.9,"description":"Annual, negotiated"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	p := decode[billing.Payment](t, w)
	assert.Equal(t, 99.9, p.Amount)
	assert.Equal(t, "Annual, negotiated", p.Description)
	require.NotNil(t, p.Metadata.StartDate)
	assert.Equal(t, "2024-04-01", p.Metadata.StartDate.Format(httputil.DateLayout))
}

func TestCreatePayment_Idempotent(t *testing.T) {
	env := newTestEnv(t)
	body := `{"tenant_id":"base-1","type":"subscription","member_limit":3}`
	headers := map[string]string{middleware.IdempotencyKeyHeader: "checkout-42"}

	first := env.do(http.MethodPost, "/v1/payments", body, headers)
	second := env.do(http.MethodPost, "/v1/payments", body, headers)

	require.Equal(t, http.StatusCreated, first.Code)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, decode[billing.Payment](t, first).ID, decode[billing.Payment](t, second).ID)
	assert.Equal(t, "true", second.Header().Get(middleware.IdempotentReplayedHeader))

	all := decode[ListResponse[*billing.Payment]](t, env.do(http.MethodGet, "/v1/payments", "", nil))
	assert.Equal(t, 1, all.Count)

	// Same key, different request
	w := env.do(http.MethodPost, "/v1/payments", `{"tenant_id":"base-2","type":"subscription","member_limit":3}`, headers)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestConfirmPayment_Errors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodPost, "/v1/payments/missing/confirm", "", operator("ana"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	created := decode[billing.Payment](t, env.do(http.MethodPost, "/v1/payments",
		`{"tenant_id":"base-1","type":"member_addition","member_count":2,"months":1}`, nil))

	t.Run("requires an operator", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/payments/"+created.ID+"/confirm", "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("member addition needs a subscription", func(t *testing.T) {
		w := env.do(http.MethodPost, "/v1/payments/"+created.ID+"/confirm", "", operator("ana"))
		assert.Equal(t, http.StatusNotFound, w.Code)

		p := decode[billing.Payment](t, env.do(http.MethodGet, "/v1/payments/"+created.ID, "", nil))
		assert.Equal(t, billing.PaymentStatusPending, p.Status, "a failed confirmation leaves the payment pending")
	})
}

func TestUpdatePayment(t *testing.T) {
	env := newTestEnv(t)
	created := decode[billing.Payment](t, env.do(http.MethodPost, "/v1/payments",
		`{"tenant_id":"base-1","type":"subscription","member_limit":3}`, nil))

	w := env.do(http.MethodPatch, "/v1/payments/"+created.ID, `{"amount":2.5,"description":"Discounted"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[billing.Payment](t, w)
	assert.Equal(t, 2.5, updated.Amount)
	assert.Equal(t, "Discounted", updated.Description)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodPatch, "/v1/payments/"+created.ID, `{}`, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodPatch, "/v1/payments/missing", `{"amount":1}`, nil).Code)
}

func TestListPayments_StatusFilter(t *testing.T) {
	env := newTestEnv(t)
	first := decode[billing.Payment](t, env.do(http.MethodPost, "/v1/payments",
		`{"tenant_id":"base-1","type":"subscription","member_limit":3}`, nil))
	env.do(http.MethodPost, "/v1/payments", `{"tenant_id":"base-2","type":"subscription","member_limit":3}`, nil)
	require.Equal(t, http.StatusOK, env.do(http.MethodPost, "/v1/payments/"+first.ID+"/confirm", "", operator("ana")).Code)

	confirmed := decode[ListResponse[*billing.Payment]](t, env.do(http.MethodGet, "/v1/payments?status=confirmed", "", nil))
	require.Equal(t, 1, confirmed.Count)
	assert.Equal(t, first.ID, confirmed.Items[0].ID)

	pending := decode[ListResponse[*billing.Payment]](t, env.do(http.MethodGet, "/v1/payments?status=pending", "", nil))
	assert.Equal(t, 1, pending.Count)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/v1/payments?status=lost", "", nil).Code)
}
