// Package reminders warns tenants before their subscription runs out.
//
// A Scanner walks every subscription and, for each warning offset d
// (7, 3 and 1 days by default), notifies the active subscriptions whose end
// date is at least d-1 and less than d days away. Run once a day, every
// tenant receives each reminder exactly once.
//
//	scanner := reminders.NewScanner(engine, reminders.LogNotifier{Logger: logger}, billing.SystemClock{}, logger)
//	scheduler, err := reminders.NewScheduler(scanner, "0 9 * * *", logger)
//	if err != nil {
//		return err
//	}
//	go scheduler.Run(ctx)
//
// Delivery is left to the Notifier. LogNotifier only records a log line.
package reminders
