package traverse

// visitQuota counts node visits for one traversal and enforces the ceiling.
//
// The ceiling only exists to stop runaway expansion of cyclic branch
// graphs. Acyclic documents finish in as many visits as they have
// reachable node paths.
type visitQuota struct {
	pipeline string
	max      int
	current  int
}

func newVisitQuota(pipeline string, max int) *visitQuota {
	return &visitQuota{pipeline: pipeline, max: max}
}

// Check records one visit and fails once the ceiling is exceeded.
func (q *visitQuota) Check() error {
	q.current++
	if q.current > q.max {
		return NewOverflowError(q.pipeline, q.current, 0, q.max)
	}
	return nil
}

// Reserve fails when n more queued nodes on top of pending would take the
// walk past the ceiling. Every queued node is visited eventually, so the
// walk is bound to overflow and the queue never outgrows the ceiling.
func (q *visitQuota) Reserve(pending, n int) error {
	if q.current+pending+n > q.max {
		return NewOverflowError(q.pipeline, q.current, pending+n, q.max)
	}
	return nil
}

// Visits returns the number of visits recorded.
func (q *visitQuota) Visits() int {
	return q.current
}
