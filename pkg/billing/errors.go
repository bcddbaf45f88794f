package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced payment does not exist
	ErrNotFound = errors.New("payment not found")
	// ErrAlreadyConfirmed is returned when confirming a confirmed payment
	ErrAlreadyConfirmed = errors.New("payment already confirmed")
	// ErrSubscriptionNotFound is returned when a tenant has no subscription
	ErrSubscriptionNotFound = errors.New("subscription not found")
	// ErrInvariantViolation is returned when a write would break a subscription invariant
	ErrInvariantViolation = errors.New("subscription invariant violation")
	// ErrNotPending is returned when an operation requires a pending payment
	ErrNotPending = errors.New("payment is not pending")
	// ErrInvalidRecord is returned when a record does not match its schema
	ErrInvalidRecord = errors.New("invalid record")
	// ErrAdmissionDenied is returned when a member cannot be admitted
	ErrAdmissionDenied = errors.New("member admission denied")
)

// ValidationError describes a record rejected at the storage boundary
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Record, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// InvariantError describes a subscription state that breaks an invariant
type InvariantError struct {
	TenantID string
	Detail   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("subscription invariant violated for tenant %s: %s", e.TenantID, e.Detail)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

// AdmissionDeniedError carries the admission decision that refused a member
type AdmissionDeniedError struct {
	TenantID  string
	Admission Admission
}

func (e *AdmissionDeniedError) Error() string {
	return fmt.Sprintf("cannot add member to tenant %s: %s (%d/%d)",
		e.TenantID, e.Admission.Reason, e.Admission.CurrentCount, e.Admission.MemberLimit)
}

func (e *AdmissionDeniedError) Unwrap() error {
	return ErrAdmissionDenied
}

// IsAdmissionDenied checks if an error is an admission denial
func IsAdmissionDenied(err error) bool {
	var denied *AdmissionDeniedError
	return errors.As(err, &denied)
}
