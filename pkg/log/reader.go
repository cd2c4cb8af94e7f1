package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	ConnectionID string
	PeerID       string

	// Remote matches the Remote field exactly.
	Remote string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time
}

// Match reports whether event passes the filter.
func (f *Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID:
		return false
	case f.PeerID != "" && event.PeerID != f.PeerID:
		return false
	case f.Remote != "" && event.Remote != f.Remote:
		return false
	case f.Direction != nil && event.Direction != *f.Direction:
		return false
	case f.Layer != nil && event.Layer != *f.Layer:
		return false
	case f.Category != nil && event.Category != *f.Category:
		return false
	case f.TimeStart != nil && event.Timestamp.Before(*f.TimeStart):
		return false
	case f.TimeEnd != nil && !event.Timestamp.Before(*f.TimeEnd):
		return false
	}
	return true
}

// Reader iterates over the events of a capture.
type Reader struct {
	closer  io.Closer
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens a capture file and returns every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens a capture file and returns matching events.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r := NewStreamReader(f, filter)
	r.closer = f
	return r, nil
}

// NewStreamReader reads events from r, e.g. standard input.
func NewStreamReader(r io.Reader, filter Filter) *Reader {
	return &Reader{
		decoder: NewDecoder(r),
		filter:  filter,
	}
}

// Next returns the next matching event, or io.EOF at the end. A capture cut
// off mid-event also ends with io.EOF.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Event{}, io.EOF
			}
			return Event{}, err
		}
		if r.filter.Match(event) {
			return event, nil
		}
	}
}

// Close closes the underlying file, if any.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
