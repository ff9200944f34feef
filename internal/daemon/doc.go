// Package daemon owns the long-running pressroom process.
//
// A Daemon holds the single-instance flock, recovers jobs interrupted by a
// previous process, and runs the worker pool alongside the HTTP API. The API
// is a chi router over api.JobService plus the fanout event stream; every
// route except the stream requires the bearer token when one is configured.
package daemon
