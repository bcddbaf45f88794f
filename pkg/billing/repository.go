package billing

import (
	"context"

	"github.com/platinummonkey/basekeeper/pkg/members"
)

// SubscriptionRepository stores one subscription per tenant
type SubscriptionRepository interface {
	// GetSubscription returns ErrSubscriptionNotFound when the tenant has none
	GetSubscription(ctx context.Context, tenantID string) (*Subscription, error)
	// SaveSubscription inserts or replaces the tenant's subscription
	SaveSubscription(ctx context.Context, sub *Subscription) error
	ListSubscriptions(ctx context.Context) ([]*Subscription, error)
}

// PaymentRepository stores payments keyed by id
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *Payment) error
	// GetPayment returns ErrNotFound when the payment does not exist
	GetPayment(ctx context.Context, id string) (*Payment, error)
	// UpdatePayment replaces a stored payment; ErrNotFound when absent
	UpdatePayment(ctx context.Context, payment *Payment) error
	// DeletePayment removes a payment; ErrNotFound when absent
	DeletePayment(ctx context.Context, id string) error
	// ListPayments returns matching payments, newest first
	ListPayments(ctx context.Context, filter PaymentFilter) ([]*Payment, error)
}

// Repositories groups the repositories one unit of work operates on
type Repositories interface {
	Subscriptions() SubscriptionRepository
	Payments() PaymentRepository
	Members() members.Repository
}

// Store is the persistence layer of the engine. Reads outside a transaction
// go through the embedded Repositories.
type Store interface {
	Repositories

	// InTenantTx runs fn with exclusive access to the tenant's records.
	// Calls for the same tenant are serialized; calls for different tenants
	// do not block each other. Writes made through the Repositories passed
	// to fn are committed only when fn returns nil.
	InTenantTx(ctx context.Context, tenantID string, fn func(ctx context.Context, repos Repositories) error) error
}
