// Package api defines the wire-format types and the job service behind the
// daemon's HTTP API and the CLI client.
//
// JobService wraps the job store with admission rules: options are validated
// against the options schema and snapshotted fully resolved, duplicate
// admissions surface as jobs.ErrConflict, and bulk actions report one outcome
// per id. DTOs use camelCase JSON tags; timestamps are RFC3339 with
// milliseconds; options and derived snapshots pass through as raw JSON.
package api
