package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/iotivity/ca-go/pkg/log"
)

// RunExport exports matching events as JSON lines or CSV.
func RunExport(path, format, output string, filter log.Filter) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return Export(reader, format, w)
}

// Export writes the events of reader to w.
func Export(reader *log.Reader, format string, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(reader, w)
	case "csv":
		return exportCSV(reader, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

var csvHeader = []string{"timestamp", "connection_id", "direction", "layer", "category", "role", "remote", "peer_id", "type", "code", "token", "size"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return cw.Error()
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		var code, token, size string
		switch {
		case event.Message != nil:
			code = event.Message.Code
			token = hex.EncodeToString(event.Message.Token)
			size = strconv.Itoa(event.Message.Size)
		case event.Frame != nil:
			size = strconv.Itoa(event.Frame.Size)
		}

		row := []string{
			event.Timestamp.UTC().Format(timestampLayout),
			event.ConnectionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.LocalRole.String(),
			event.Remote,
			event.PeerID,
			eventType(event),
			code,
			token,
			size,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
}
