// Package jobs persists pipeline jobs in SQLite and owns their state machine.
//
// Every state change is a single conditional UPDATE keyed by id and the
// expected source state, so concurrent callers (the worker loop, in-flight
// executions, and operator requests arriving over the API) never race each
// other into an illegal state. Admission rejects a second active job for the
// same subject; a partial unique index enforces the same rule at the storage
// layer.
//
// Completed runs that produced a post are also recorded in a publications
// ledger. Clearing job history never touches it, so fingerprint lookups keep
// steering later runs toward skip or update.
//
// Schema changes ship as numbered files under migrations/ and are applied on
// open; PRAGMA user_version records how many have run.
package jobs
