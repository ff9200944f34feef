// Package worker runs pending jobs through the pipeline with a fixed
// concurrency budget.
//
// A single coordinating loop owns claiming: it reaps finished executions,
// asks the store for at most as many pending jobs as there are free slots,
// claims each one before launching it, and otherwise sleeps until the poll
// interval elapses or Wake is called. Executions persist their own outcome
// with a detached context so shutdown cannot lose a finished result.
package worker
