// Package repository is the entity store of the reservation core.  Store
// hands out transactions and Queries is everything a transaction can do;
// SQLStore implements them over MySQL or PostgreSQL and MemoryStore keeps
// everything in process.
//
// Driver errors never leave this package raw: they are wrapped with the
// operation name and classified into model.ErrPersistenceConflict or
// model.ErrStoreUnavailable so handlers can branch with errors.Is.
package repository

import "errors"

// errReadOnlyTx is returned when a write is attempted through the Queries
// of a ReadOnly transaction.
var errReadOnlyTx = errors.New("write in read-only transaction")
