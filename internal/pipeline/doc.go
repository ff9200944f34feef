// Package pipeline runs an ordered list of stages against one job's context.
//
// A Stage decides with Applies whether it has work to do and performs that
// work in Execute. The engine runs stages strictly in registration order, stops
// at the first failure (restoring the context to its pre-stage snapshot and
// recording the error), and stops early when a stage settles the outcome as
// skip. The engine keeps no state between runs; every run owns its Context.
//
// Options carries the per-job knobs captured at admission and validated
// against an embedded JSON Schema.
package pipeline
