// Package repository implements the transactional document store that the
// reservation engine runs against.  Every operation executes inside an
// optimistic transaction: reads record the version of each document they
// observe, writes are staged in memory, and commit validates the recorded
// versions before applying all writes at once.  A transaction whose reads
// were invalidated by a concurrent commit fails with ErrConflict and is
// retried by Store.RunTransaction.
//
// The sentinel values in this file allow higher layers to distinguish
// between the different failure scenarios.
package repository

import "errors"

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict signals that a document read by the transaction was changed
// by another committed transaction (or that the database reported a
// deadlock, lock timeout or duplicate key).  The whole transaction is
// discarded and may be retried.
var ErrConflict = errors.New("transaction conflict")

// ErrRetriesExhausted is returned by RunTransaction when every attempt
// ended in ErrConflict.  It is transient: the caller may try again later.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// ErrReadAfterWrite is returned when a transaction tries to read after it
// has staged a write.  All reads must precede all writes.
var ErrReadAfterWrite = errors.New("read after write in transaction")
