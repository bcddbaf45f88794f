// Package pricing prices subscriptions and member additions and builds the
// pending payments an operator records before confirming them.
//
// Every plan is priced per member-month:
//
//	amount = members * price_per_member_monthly * months
//
// Free plans grant their months at amount 0. Amounts are rounded to cents.
//
// # Catalog file
//
//	currency: BRL
//	price_per_member_monthly: 1.00
//	payment_method: pix
//	plans:
//	  - {id: monthly, name: Monthly, months: 1}
//	  - {id: quarterly, name: Quarterly, months: 3}
//	  - {id: free, name: Free, months: 12, free: true}
//
// A Watcher reloads the file when it changes on disk. Readers call Current()
// and always see a complete, validated catalog.
package pricing
