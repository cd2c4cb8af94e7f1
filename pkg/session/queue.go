package session

// PendingQueue holds outbound payloads for a session whose handshake has not
// completed. It is guarded by the owning session's lock.
type PendingQueue struct {
	items [][]byte
	limit int
}

// NewPendingQueue creates a queue holding at most limit payloads. A limit of
// 0 or less means unbounded.
func NewPendingQueue(limit int) *PendingQueue {
	return &PendingQueue{limit: limit}
}

// Enqueue appends a copy of payload.
func (q *PendingQueue) Enqueue(payload []byte) error {
	if q.limit > 0 && len(q.items) >= q.limit {
		return ErrQueueFull
	}
	q.items = append(q.items, append([]byte(nil), payload...))
	return nil
}

// Prepend inserts a copy of payload ahead of everything queued. The limit
// does not apply; it is used for signaling that must precede application
// data.
func (q *PendingQueue) Prepend(payload []byte) {
	q.items = append([][]byte{append([]byte(nil), payload...)}, q.items...)
}

// Drain returns all payloads in insertion order and empties the queue.
func (q *PendingQueue) Drain() [][]byte {
	items := q.items
	q.items = nil
	return items
}

// Discard drops all payloads and returns how many there were.
func (q *PendingQueue) Discard() int {
	n := len(q.items)
	q.items = nil
	return n
}

// Len returns the number of queued payloads.
func (q *PendingQueue) Len() int {
	return len(q.items)
}

// Limit returns the configured capacity, 0 when unbounded.
func (q *PendingQueue) Limit() int {
	if q.limit < 0 {
		return 0
	}
	return q.limit
}
