// Package tx implements SDR transaction ownership.
//
// Exactly one owner, identified by process id and view id, holds an SDR at a
// time. The owner may begin again while it holds the SDR; each nested begin
// raises the depth and each end lowers it. Other callers block in Acquire
// until the owner releases at depth 0. There is no timeout: callers that need
// a bounded wait implement it outside.
//
// Ownership protocol:
//  1. Acquire(owner) - take the one-slot semaphore, then the cross-process
//     Locker, and record the owner at depth 1 (or raise the depth)
//  2. Leave(owner) - lower the depth; at 0 the caller commits or reverses
//  3. Release(owner) - drop the Locker and the semaphore
//
// Each acquisition gets a new epoch, so a handle from an earlier transaction
// can be told apart from the current one. Impersonate lets an operator take
// over the transaction of an owner that is known to be dead.
package tx
