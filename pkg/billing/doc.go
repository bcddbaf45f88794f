// Package billing implements the subscription and payment lifecycle of a tenant ("base").
//
// # Overview
//
// Every tenant has at most one Subscription describing its paid coverage
// window and member capacity. Payments fund it. The package has four parts:
//
//   - AdmissionController: gates new members on capacity and validity
//   - Ledger: records pending payments and lists them
//   - Engine: applies a payment's effect on confirmation and reverses it on deletion
//   - Store: the injected persistence layer (see pkg/storage)
//
// # Payment Effects
//
// A subscription payment buys metadata.months of coverage (default 1). A
// renewal starts where the current period ends when that is still in the
// future, otherwise now; an explicit metadata.start_date wins over both. The
// first confirmed subscription payment creates the tenant's Subscription.
//
// A member_addition payment raises the member limit by metadata.member_count
// and requires an existing Subscription.
//
// Deleting a confirmed payment subtracts what it added. Month arithmetic uses
// time.Time.AddDate, so a reversal across months of different lengths may
// land a day or two away from the original end date.
//
// # Usage Example
//
//	engine := billing.NewEngine(store, billing.SystemClock{}, logger, metrics)
//	ledger := billing.NewLedger(store, engine, billing.SystemClock{}, logger, metrics)
//
//	p, err := ledger.Create(ctx, &billing.Payment{
//		TenantID: "base-42",
//		Type:     billing.PaymentTypeMemberAddition,
//		Amount:   15,
//		Metadata: billing.PaymentMetadata{MemberCount: &five, Months: &three},
//	})
//	confirmation, err := engine.Confirm(ctx, p.ID, "treasurer@example.org")
//
// # Concurrency
//
// Confirm, DeletePayment, AdjustEndDates, Ledger.Update and
// AdmissionController.AdmitMember run inside Store.InTenantTx, which
// serializes work per tenant. Different tenants proceed in parallel.
//
// # Related Packages
//
//   - pkg/members: member records counted by admission control
//   - pkg/pricing: plan catalog and quotes used to build payments
//   - pkg/storage/memory, pkg/storage/postgres: Store implementations
package billing
