// Command ca-log views and analyzes protocol captures written by ca-node
// with -protocol-log.
//
// Usage:
//
//	ca-log <command> [flags] <file.calog>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines or CSV
//	filter   Filter log file and write to new file
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View handshake progress only
//	ca-log view -layer secure node.calog
//
//	# View one peer's traffic
//	ca-log view -remote coaps+tcp://10.0.0.2:5684 node.calog
//
//	# Export to CSV
//	ca-log export -format csv -o node.csv node.calog
//
//	# Show statistics
//	ca-log stats node.calog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/iotivity/ca-go/cmd/ca-log/commands"
	"github.com/iotivity/ca-go/pkg/log"
)

const usage = `ca-log - CoAP adapter protocol log analyzer

Usage:
  ca-log <command> [flags] <file.calog>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines or CSV
  filter   Filter log file and write to new file
  stats    Show statistics about the log file

Use "ca-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// filterFlags registers the shared filter flags on fs.
func filterFlags(fs *flag.FlagSet) *commands.FilterOptions {
	var o commands.FilterOptions
	fs.StringVar(&o.ConnID, "conn-id", "", "Filter by connection ID")
	fs.StringVar(&o.PeerID, "peer-id", "", "Filter by peer device ID")
	fs.StringVar(&o.Remote, "remote", "", "Filter by remote endpoint URI")
	fs.StringVar(&o.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&o.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	fs.StringVar(&o.Layer, "layer", "", "Filter by layer (transport, secure, message)")
	fs.StringVar(&o.Direction, "direction", "", "Filter by direction (in, out)")
	fs.StringVar(&o.Category, "category", "", "Filter by category (message, control, state, error)")
	return &o
}

// parse parses args and returns the capture path and filter.
func parse(fs *flag.FlagSet, opts *commands.FilterOptions, args []string) (string, log.Filter) {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
	var filter log.Filter
	if opts != nil {
		var err error
		if filter, err = opts.Build(); err != nil {
			fail(err)
		}
	}
	return fs.Arg(0), filter
}

func newFlagSet(name, synopsis string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "ca-log %s - %s\n\nUsage:\n  ca-log %s [flags] <file.calog>\n\nFlags:\n", name, synopsis, name)
		fs.PrintDefaults()
	}
	return fs
}

func runView(args []string) {
	fs := newFlagSet("view", "View log file in human-readable format")
	opts := filterFlags(fs)
	path, filter := parse(fs, opts, args)

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := newFlagSet("export", "Export log file to JSON lines or CSV")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	opts := filterFlags(fs)
	path, filter := parse(fs, opts, args)

	if err := commands.RunExport(path, *format, *output, filter); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs := newFlagSet("filter", "Filter log file and write to new file")
	output := fs.String("o", "", "Output file (required)")
	opts := filterFlags(fs)
	path, filter := parse(fs, opts, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	n, err := commands.RunFilter(path, *output, filter)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", n, *output)
}

func runStats(args []string) {
	fs := newFlagSet("stats", "Show statistics about the log file")
	path, _ := parse(fs, nil, args)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fail(err)
	}
}
