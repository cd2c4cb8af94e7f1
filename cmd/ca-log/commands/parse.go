// Package commands implements the ca-log CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/iotivity/ca-go/pkg/log"
)

// FilterOptions are the filter flags shared by view, export and filter.
type FilterOptions struct {
	ConnID    string
	PeerID    string
	Remote    string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Build turns the flag values into a log.Filter.
func (o FilterOptions) Build() (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: o.ConnID,
		PeerID:       o.PeerID,
		Remote:       o.Remote,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return log.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, err := ParseLayerFlag(o.Layer)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := ParseDirectionFlag(o.Direction)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := ParseCategoryFlag(o.Category)
		if err != nil {
			return log.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	l, ok := log.ParseLayer(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid layer: %s (must be transport, secure, or message)", s)
	}
	return l, nil
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
	}
	return c, nil
}

// eventType labels the payload of an event.
func eventType(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "Frame"
	case event.Message != nil:
		return "Message"
	case event.StateChange != nil:
		return "State"
	case event.Signal != nil:
		return event.Signal.Type.String()
	case event.Error != nil:
		return "Error"
	default:
		return "Unknown"
	}
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

const timestampLayout = "2006-01-02T15:04:05.000000Z"
