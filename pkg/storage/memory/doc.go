// Package memory provides an in-process billing.Store and idempotency cache.
//
// Store serializes work per tenant with one mutex per tenant id. Writes made
// inside InTenantTx are staged in a transaction overlay and copied into the
// committed maps only when the callback succeeds, so a failed confirmation or
// reversal leaves no partial state behind. Every record is validated before
// it is written.
package memory
