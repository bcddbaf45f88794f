package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/platinummonkey/basekeeper/pkg/members"
	"github.com/platinummonkey/basekeeper/pkg/observability"
)

// AdmissionController decides whether a tenant may enroll another member
type AdmissionController struct {
	store   Store
	clock   Clock
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewAdmissionController creates an AdmissionController. metrics may be nil.
func NewAdmissionController(store Store, clock Clock, logger *observability.Logger, metrics *observability.Metrics) *AdmissionController {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &AdmissionController{
		store:   store,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// CanAddMember reports whether the tenant may add a member right now. It has
// no side effects.
func (a *AdmissionController) CanAddMember(ctx context.Context, tenantID string) (*Admission, error) {
	admission, err := a.evaluate(ctx, a.store, tenantID)
	if err != nil {
		return nil, err
	}
	a.metrics.RecordAdmission(admission.CanAdd, admission.Reason)
	return admission, nil
}

// AdmitMember checks admission and inserts the member in one tenant
// transaction, so concurrent signups cannot both pass on a stale count.
// A denied admission returns *AdmissionDeniedError and writes nothing.
func (a *AdmissionController) AdmitMember(ctx context.Context, member *members.Member) (*Admission, error) {
	if member == nil || member.TenantID == "" {
		return nil, fmt.Errorf("%w: tenant_id is required", members.ErrInvalidMember)
	}

	var admission *Admission
	started := time.Now()
	err := a.store.InTenantTx(ctx, member.TenantID, func(ctx context.Context, repos Repositories) error {
		var err error
		admission, err = a.evaluate(ctx, repos, member.TenantID)
		if err != nil {
			return err
		}
		if !admission.CanAdd {
			return &AdmissionDeniedError{TenantID: member.TenantID, Admission: *admission}
		}

		if member.ID == "" {
			member.ID = uuid.NewString()
		}
		if member.Status == "" {
			member.Status = members.StatusApproved
		}
		if member.CreatedAt.IsZero() {
			member.CreatedAt = a.clock.Now()
		}
		if err := member.Validate(); err != nil {
			return err
		}
		if err := repos.Members().InsertMember(ctx, member); err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
		return nil
	})
	a.metrics.ObserveTransaction("admit", started)

	log := a.logger.WithTenant(member.TenantID)
	if admission != nil {
		a.metrics.RecordAdmission(err == nil, admission.Reason)
	}
	if err != nil {
		var denied *AdmissionDeniedError
		if errors.As(err, &denied) {
			log.WithField("reason", denied.Admission.Reason).Info("member admission denied")
		} else {
			log.WithError(err).Error("member admission failed")
		}
		return admission, err
	}

	log.WithField("member_id", member.ID).Info("member admitted")
	return admission, nil
}

func (a *AdmissionController) evaluate(ctx context.Context, repos Repositories, tenantID string) (*Admission, error) {
	sub, err := loadSubscription(ctx, repos, tenantID)
	if err != nil {
		return nil, err
	}

	// Always read the live count; admission must reflect current usage.
	count, err := repos.Members().CountApprovedMembers(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	admission := decideAdmission(sub, count, a.clock.Now())
	return &admission, nil
}

// decideAdmission applies the admission rules in order
func decideAdmission(sub *Subscription, count int, now time.Time) Admission {
	if sub == nil {
		return Admission{
			CanAdd:       true,
			CurrentCount: count,
			MemberLimit:  UnlimitedMemberLimit,
			Reason:       ReasonNoSubscription,
		}
	}

	admission := Admission{
		CurrentCount: count,
		MemberLimit:  sub.MemberLimit,
	}
	switch {
	case sub.Status != SubscriptionStatusActive:
		admission.Reason = ReasonSubscriptionNotActive
	case sub.EndDate.Before(now):
		// A stale active status never outranks the date.
		admission.Reason = ReasonSubscriptionExpired
	case count >= sub.MemberLimit:
		admission.Reason = ReasonMemberLimitReached
	default:
		admission.CanAdd = true
	}
	return admission
}
