package framing

import (
	"fmt"
)

// Status is the outcome of a Feed call.
type Status uint8

const (
	// StatusNeedMore means the current message is still incomplete.
	StatusNeedMore Status = iota
	// StatusComplete means a full message was produced.
	StatusComplete
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusNeedMore:
		return "NEED_MORE"
	case StatusComplete:
		return "COMPLETE"
	default:
		return "UNKNOWN"
	}
}

// Result reports what a Feed call did with its input.
type Result struct {
	Status Status
	// Consumed is the number of input bytes taken. The caller feeds the
	// remainder again to obtain any following messages.
	Consumed int
}

// Reassembler accumulates bytes into one complete message at a time.
type Reassembler struct {
	framing Framing
	maxSize int

	buf       []byte
	headerLen int // 0 until the first byte of a message is seen
	total     int // 0 until the header is complete
}

// New creates a reassembler. maxSize <= 0 selects DefaultMaxMessageSize.
func New(f Framing, maxSize int) *Reassembler {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Reassembler{
		framing: f,
		maxSize: maxSize,
	}
}

// Framing returns the framing this reassembler parses.
func (r *Reassembler) Framing() Framing {
	return r.framing
}

// MaxSize returns the largest accepted message.
func (r *Reassembler) MaxSize() int {
	return r.maxSize
}

// Pending returns the number of buffered bytes of the current message.
func (r *Reassembler) Pending() int {
	return len(r.buf)
}

// Expected returns the total length of the current message, or 0 while the
// header is still incomplete.
func (r *Reassembler) Expected() int {
	return r.total
}

// Reset drops any partial message.
func (r *Reassembler) Reset() {
	r.buf = nil
	r.headerLen = 0
	r.total = 0
}

// Feed consumes bytes from chunk until a message completes or chunk is
// exhausted. At most one message is returned per call; the returned slice is
// owned by the caller.
//
// A header announcing a message larger than the maximum, or one the framing
// rejects, returns an error wrapping ErrProtocolViolation and resets the
// state.
func (r *Reassembler) Feed(chunk []byte) (Result, []byte, error) {
	consumed := 0
	for consumed < len(chunk) {
		if r.total == 0 {
			if len(r.buf) == 0 {
				r.headerLen = r.framing.HeaderLength(chunk[consumed])
			}
			n := min(r.headerLen-len(r.buf), len(chunk)-consumed)
			r.buf = append(r.buf, chunk[consumed:consumed+n]...)
			consumed += n
			if len(r.buf) < r.headerLen {
				break
			}

			total, err := r.framing.TotalLength(r.buf)
			if err != nil {
				r.Reset()
				return Result{Consumed: consumed}, nil, fmt.Errorf("%w: %s: %w", ErrProtocolViolation, r.framing.Name(), err)
			}
			if total > r.maxSize {
				r.Reset()
				return Result{Consumed: consumed}, nil, fmt.Errorf("%w: %w: %d > %d", ErrProtocolViolation, ErrMessageTooLarge, total, r.maxSize)
			}
			r.total = total

			grown := make([]byte, len(r.buf), total)
			copy(grown, r.buf)
			r.buf = grown
		}

		n := min(r.total-len(r.buf), len(chunk)-consumed)
		r.buf = append(r.buf, chunk[consumed:consumed+n]...)
		consumed += n

		if len(r.buf) == r.total {
			msg := r.buf
			r.Reset()
			return Result{Status: StatusComplete, Consumed: consumed}, msg, nil
		}
	}
	return Result{Status: StatusNeedMore, Consumed: consumed}, nil, nil
}

// FeedAll feeds the whole chunk, calling deliver for every message that
// completes, in order. It stops at the first error from the framing or from
// deliver.
func (r *Reassembler) FeedAll(chunk []byte, deliver func(msg []byte) error) error {
	for len(chunk) > 0 {
		res, msg, err := r.Feed(chunk)
		if err != nil {
			return err
		}
		chunk = chunk[res.Consumed:]
		if res.Status == StatusComplete {
			if err := deliver(msg); err != nil {
				return err
			}
		}
	}
	return nil
}
