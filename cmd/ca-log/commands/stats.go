package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/iotivity/ca-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Signals           map[log.SignalType]int
	Connections       map[string]*ConnectionStats
	Errors            int
	Bytes             map[log.Direction]int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Messages  int
	Remote    string
	PeerID    string
	Role      log.Role

	// CloseReason is the reason of the last state change, if any.
	CloseReason string
}

// Collect reads every event of a capture into Stats.
func Collect(reader *log.Reader) (*Stats, error) {
	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Signals:           make(map[log.SignalType]int),
		Connections:       make(map[string]*ConnectionStats),
		Bytes:             make(map[log.Direction]int),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{
			FirstSeen: event.Timestamp,
			LastSeen:  event.Timestamp,
			Remote:    event.Remote,
			Role:      event.LocalRole,
		}
		s.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if event.PeerID != "" && conn.PeerID == "" {
		conn.PeerID = event.PeerID
	}

	switch {
	case event.Frame != nil:
		s.Bytes[event.Direction] += event.Frame.Size
	case event.Message != nil:
		conn.Messages++
	case event.Signal != nil:
		s.Signals[event.Signal.Type]++
	case event.StateChange != nil:
		if event.StateChange.Reason != "" {
			conn.CloseReason = event.StateChange.Reason
		}
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats, err := Collect(reader)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== CoAP Adapter Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerSecure, log.LayerMessage} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d (%d bytes)\n", dir.String()+":", count, stats.Bytes[dir])
		}
	}
	fmt.Fprintln(w)

	if len(stats.Signals) > 0 {
		fmt.Fprintln(w, "Signals:")
		for _, sig := range []log.SignalType{log.SignalCSM, log.SignalPing, log.SignalPong, log.SignalRelease, log.SignalAbort} {
			if count := stats.Signals[sig]; count > 0 {
				fmt.Fprintf(w, "  %-12s %d\n", sig.String()+":", count)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %s %s, %d events, %d messages, duration %s\n",
				shortenConnID(c.id), c.stats.Role, c.stats.Remote, c.stats.Events, c.stats.Messages, duration)
			if c.stats.PeerID != "" {
				fmt.Fprintf(w, "           Peer: %s\n", c.stats.PeerID)
			}
			if c.stats.CloseReason != "" {
				fmt.Fprintf(w, "           Closed: %s\n", c.stats.CloseReason)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
