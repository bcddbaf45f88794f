package members

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Status represents a member's approval state
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusRejected Status = "rejected"
)

// Valid reports whether s is a known member status
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusPending, StatusRejected:
		return true
	}
	return false
}

// Member is a user account attached to a tenant
type Member struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrInvalidMember is returned when a member record fails validation
var ErrInvalidMember = errors.New("invalid member")

// Validate checks the member record before it is written
func (m *Member) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMember)
	}
	if m.TenantID == "" {
		return fmt.Errorf("%w: tenant_id is required", ErrInvalidMember)
	}
	if m.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMember)
	}
	if !m.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidMember, m.Status)
	}
	return nil
}

// Directory is the authoritative source of member counts per tenant.
// Counts must never be served from a cache.
type Directory interface {
	CountApprovedMembers(ctx context.Context, tenantID string) (int, error)
}

// Repository extends Directory with the writes the admission path performs
type Repository interface {
	Directory
	InsertMember(ctx context.Context, member *Member) error
	ListMembers(ctx context.Context, tenantID string) ([]*Member, error)
}
