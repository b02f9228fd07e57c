package traverse

import "github.com/roach88/pipemap/internal/flowspec"

// workItem is one pending node with the breadcrumb of its enqueuing context.
type workItem struct {
	node       *flowspec.Node
	breadcrumb string
}

// workQueue is the traversal deque.
//
// Only front operations are needed, so the deque is stored reversed: the
// front of the queue is the end of the slice. Splicing a branch costs
// O(len(branch)) regardless of how much work is already pending.
type workQueue struct {
	stack []workItem
}

func newWorkQueue() *workQueue {
	return &workQueue{stack: make([]workItem, 0, 64)}
}

// SpliceFront places nodes at the front of the queue, keeping their order.
func (q *workQueue) SpliceFront(nodes []flowspec.Node, breadcrumb string) {
	for i := len(nodes) - 1; i >= 0; i-- {
		q.stack = append(q.stack, workItem{node: &nodes[i], breadcrumb: breadcrumb})
	}
}

// PopFront removes and returns the front item.
// Returns false when the queue is empty.
func (q *workQueue) PopFront() (workItem, bool) {
	n := len(q.stack)
	if n == 0 {
		return workItem{}, false
	}
	item := q.stack[n-1]
	q.stack[n-1] = workItem{}
	q.stack = q.stack[:n-1]
	return item, true
}

// Len returns the number of pending items.
func (q *workQueue) Len() int {
	return len(q.stack)
}
