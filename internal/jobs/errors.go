package jobs

import "errors"

var (
	// ErrConflict reports that the subject already has a waiting, pending, or running job.
	ErrConflict = errors.New("subject already has an active job")
	// ErrNotFound reports an unknown job id.
	ErrNotFound = errors.New("job not found")
	// ErrPrecondition reports that the job is not in the state the action requires.
	ErrPrecondition = errors.New("job state does not allow this action")
	// ErrIllegalTransition reports an edge that is not part of the state graph.
	ErrIllegalTransition = errors.New("illegal state transition")
)
