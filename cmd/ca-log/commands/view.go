package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/iotivity/ca-go/pkg/log"
)

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format(timestampLayout)

	layer := event.Layer.String()
	if event.Category == log.CategoryControl {
		layer = "CTRL"
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n",
		ts, shortenConnID(event.ConnectionID), event.Direction, layer, eventType(event))

	if event.Remote != "" {
		fmt.Fprintf(w, "  Remote: %s (%s)\n", event.Remote, event.LocalRole)
	}
	if event.PeerID != "" {
		fmt.Fprintf(w, "  Peer: %s\n", event.PeerID)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.Message != nil:
		formatMessageDetails(w, event.Message)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Signal != nil:
		if event.Signal.Type == log.SignalPing || event.Signal.Type == log.SignalPong {
			fmt.Fprintf(w, "  Sequence: %d\n", event.Signal.Sequence)
		}
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

func formatMessageDetails(w io.Writer, msg *log.MessageEvent) {
	fmt.Fprintf(w, "  Code: %s\n", msg.Code)
	if len(msg.Token) > 0 {
		fmt.Fprintf(w, "  Token: %s\n", hex.EncodeToString(msg.Token))
	}
	fmt.Fprintf(w, "  Size: %d bytes\n", msg.Size)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", e.Layer)
	fmt.Fprintf(w, "  Message: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
	if e.Fatal {
		fmt.Fprintln(w, "  Fatal: session closed")
	}
}

// RunView prints the matching events of a capture.
func RunView(path string, filter log.Filter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}
}
