// Package services defines shared utilities consumed by pipeline stages and
// external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, subject IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so stage failures carry a
//     consistent "stage: operation: message" shape and stay classifiable.
//
// Use these helpers when wiring new stage logic so failures read the same way
// in job records, notifications, and logs.
package services
