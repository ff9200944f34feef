// Package preflight provides readiness checks for the filesystem paths and
// remote services pressroom depends on.
//
// The daemon runs RunLocal at startup and reports the results in its status
// payload; the CLI "pressroom status --check" runs RunAll, which adds the
// publishing site and LLM checks when those are configured.
package preflight
