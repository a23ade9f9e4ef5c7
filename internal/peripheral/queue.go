package peripheral

// CommandQueue is the ordered, single-flight command list of one link.
// It is owned by the peripheral worker and is not safe for concurrent use.
type CommandQueue struct {
	items []*Command
	busy  bool
}

// NewCommandQueue returns an empty, idle queue.
func NewCommandQueue() *CommandQueue {
	return &CommandQueue{}
}

// Enqueue appends cmd to the tail.
func (q *CommandQueue) Enqueue(cmd *Command) {
	q.items = append(q.items, cmd)
}

// Next pops the head and marks the queue busy. It returns false while a
// command is in flight or when the queue is empty.
func (q *CommandQueue) Next() (*Command, bool) {
	if q.busy || len(q.items) == 0 {
		return nil, false
	}
	cmd := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.busy = true
	return cmd, true
}

// Complete marks the in-flight command finished so the next one can start.
func (q *CommandQueue) Complete() {
	q.busy = false
}

// Flush fails every queued command with err and clears the busy flag.
// The in-flight command, if any, is not part of the queue and is not touched.
func (q *CommandQueue) Flush(err error) int {
	n := len(q.items)
	for _, cmd := range q.items {
		cmd.Fail(err)
	}
	q.items = nil
	q.busy = false
	return n
}

// Len returns the number of commands waiting to be dispatched.
func (q *CommandQueue) Len() int {
	return len(q.items)
}

// Busy reports whether a command is in flight.
func (q *CommandQueue) Busy() bool {
	return q.busy
}
