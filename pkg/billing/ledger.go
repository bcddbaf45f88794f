package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// Ledger records payments. Creating or editing a payment never touches a
// subscription; only confirmation and deletion do, through the Engine.
type Ledger struct {
	store   Store
	engine  *Engine
	clock   Clock
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewLedger creates a Ledger. metrics may be nil.
func NewLedger(store Store, engine *Engine, clock Clock, logger *observability.Logger, metrics *observability.Metrics) *Ledger {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Ledger{
		store:   store,
		engine:  engine,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Create stores a new payment. The payment is always recorded as pending,
// whatever status the caller supplied.
func (l *Ledger) Create(ctx context.Context, payment *Payment) (*Payment, error) {
	if payment == nil {
		return nil, &ValidationError{Record: "payment", Field: "payment", Reason: "is required"}
	}

	p := payment.Clone()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := l.clock.Now()
	p.Status = PaymentStatusPending
	p.CreatedAt = now
	p.UpdatedAt = now
	p.ConfirmedAt = nil
	p.ConfirmedBy = ""

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := l.store.Payments().CreatePayment(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	l.metrics.RecordPaymentCreated(string(p.Type))
	l.logger.WithPayment(p.ID, p.TenantID).WithFields(map[string]interface{}{
		"type":   p.Type,
		"amount": p.Amount,
	}).Info("payment recorded")
	return p, nil
}

// Update changes the amount or description of a pending payment. Confirmed
// payments are part of the financial record and cannot be edited.
func (l *Ledger) Update(ctx context.Context, paymentID string, update PaymentUpdate) (*Payment, error) {
	payment, err := l.store.Payments().GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	var updated *Payment
	err = l.store.InTenantTx(ctx, payment.TenantID, func(ctx context.Context, repos Repositories) error {
		current, err := repos.Payments().GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if current.Status != PaymentStatusPending {
			return fmt.Errorf("%w: status is %s", ErrNotPending, current.Status)
		}

		if update.Amount != nil {
			current.Amount = *update.Amount
		}
		if update.Description != nil {
			current.Description = *update.Description
		}
		current.UpdatedAt = l.clock.Now()

		if err := current.Validate(); err != nil {
			return err
		}
		if err := repos.Payments().UpdatePayment(ctx, current); err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.WithPayment(updated.ID, updated.TenantID).Info("payment updated")
	return updated, nil
}

// Get returns a payment by id
func (l *Ledger) Get(ctx context.Context, paymentID string) (*Payment, error) {
	return l.store.Payments().GetPayment(ctx, paymentID)
}

// ListPending returns payments awaiting confirmation, newest first
func (l *Ledger) ListPending(ctx context.Context) ([]*Payment, error) {
	return l.store.Payments().ListPayments(ctx, PaymentFilter{Status: PaymentStatusPending})
}

// ListAll returns every payment, newest first
func (l *Ledger) ListAll(ctx context.Context) ([]*Payment, error) {
	return l.store.Payments().ListPayments(ctx, PaymentFilter{})
}

// ListByTenant returns a tenant's payments, newest first
func (l *Ledger) ListByTenant(ctx context.Context, tenantID string) ([]*Payment, error) {
	return l.store.Payments().ListPayments(ctx, PaymentFilter{TenantID: tenantID})
}

// Delete removes a payment, reversing its effect first when it was confirmed
func (l *Ledger) Delete(ctx context.Context, paymentID string) error {
	return l.engine.DeletePayment(ctx, paymentID)
}
