// Command pressroom is the operator CLI.
//
// It runs the daemon in the foreground (pressroom daemon) and talks to a
// running daemon over its HTTP API for everything else: admitting subjects,
// confirming and retrying jobs, listing and clearing jobs, and following the
// live event stream. Configuration is read from --config or the default
// location; --api and --token override the daemon address and credentials.
package main
