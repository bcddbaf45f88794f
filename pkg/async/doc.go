// Package async provides safe concurrent execution primitives for background tasks.
//
// # Key Functions
//
// SafeGo runs a fire-and-forget task with panic recovery and a timeout. The
// billing engine uses it to hand confirmed payments to listeners:
//
//	async.SafeGo(ctx, logger, 30*time.Second, "confirmation listener", func(ctx context.Context) error {
//		return listener.PaymentConfirmed(ctx, confirmation)
//	})
//
// ForEach fans work out over a bounded number of goroutines and joins every
// error instead of stopping at the first one:
//
//	err := async.ForEach(ctx, tenantIDs, 4, func(ctx context.Context, id string) error {
//		return adjust(ctx, id)
//	})
//
// # Related Packages
//
//   - pkg/billing: listener dispatch and bulk end-date adjustment
package async
