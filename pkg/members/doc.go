// Package members describes the member records a tenant ("base") enrolls.
//
// Members are owned by an external directory; this package only defines the
// record shape and the two capabilities the billing engine needs from it:
// counting approved members and inserting a newly admitted one.
//
// # Counting
//
// Only members in StatusApproved count against a subscription's member limit.
// Implementations of Directory must read committed state on every call:
//
//	count, err := dir.CountApprovedMembers(ctx, "base-42")
//
// # Related Packages
//
//   - pkg/billing: admission control built on Directory
//   - pkg/storage/memory, pkg/storage/postgres: Repository implementations
package members
