// Package interactive provides the command shell of ca-node.
package interactive

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/chzyer/readline"

	"github.com/iotivity/ca-go/pkg/discovery"
	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/transport"
	"github.com/iotivity/ca-go/pkg/wire"
)

// Backend is the adapter surface the shell drives.
type Backend interface {
	Send(ep endpoint.Endpoint, payload []byte) error
	Sessions() []transport.SessionInfo
	Disconnect(ep endpoint.Endpoint) error
	DisconnectAll(filter endpoint.Filter) int
}

// Shell is a readline command loop.
type Shell struct {
	rl      *readline.Instance
	out     io.Writer
	backend Backend
	browser *discovery.Browser
	msgID   atomic.Uint32
}

// New creates the shell. browser may be nil when discovery is disabled.
func New(backend Backend, browser *discovery.Browser) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ca> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("get"),
			readline.PcItem("post"),
			readline.PcItem("sessions"),
			readline.PcItem("disconnect", readline.PcItem("all")),
			readline.PcItem("browse",
				readline.PcItem(discovery.ServiceTypeUDP),
				readline.PcItem(discovery.ServiceTypeUDPSecure),
				readline.PcItem(discovery.ServiceTypeTCP),
				readline.PcItem(discovery.ServiceTypeTCPSecure),
			),
			readline.PcItem("help"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return newShell(rl, rl.Stdout(), backend, browser), nil
}

func newShell(rl *readline.Instance, out io.Writer, backend Backend, browser *discovery.Browser) *Shell {
	return &Shell{rl: rl, out: out, backend: backend, browser: browser}
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// PrintMessage shows an incoming message.
func (s *Shell) PrintMessage(ep endpoint.Endpoint, m wire.Summary) {
	fmt.Fprintf(s.out, "<- %s %s token=%x %q\n", ep, m.Code, m.Token, m.Payload)
}

// Run starts the interactive command loop. It cancels ctx on quit or EOF.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
		if !s.Exec(ctx, line) {
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false on quit.
func (s *Shell) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "get":
		s.cmdRequest("get", wire.CodeGet, args)
	case "post":
		s.cmdRequest("post", wire.CodePost, args)
	case "sessions", "ls":
		s.cmdSessions()
	case "disconnect", "dc":
		s.cmdDisconnect(args)
	case "browse":
		s.cmdBrowse(ctx, args)
	case "quit", "exit", "q":
		return false
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
CoAP adapter commands:
  get <uri>                 - Send a GET request
  post <uri> <text...>      - Send a POST request with a text payload
  sessions                  - List sessions
  disconnect <uri>|all      - Close one or all sessions
  browse <type> [seconds]   - Browse mDNS, e.g. browse _coaps._tcp 3
  help                      - Show this help
  quit                      - Exit

  URIs: coap://, coaps://, coap+tcp://, coaps+tcp://`)
}

func (s *Shell) cmdRequest(name string, code wire.Code, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(s.out, "Usage: %s <uri> [payload]\n", name)
		return
	}
	ep, err := endpoint.Parse(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid URI: %v\n", err)
		return
	}

	token := make([]byte, 4)
	_, _ = rand.Read(token)
	payload := []byte(strings.Join(args[1:], " "))

	msg, err := wire.Compose(ep.Adapter == endpoint.AdapterTCP, code, token, uint16(s.msgID.Add(1)), payload)
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if err := s.backend.Send(ep, msg); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "-> %s %s token=%x (%d bytes)\n", ep, code, token, len(msg))
}

func (s *Shell) cmdSessions() {
	sessions := s.backend.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(s.out, "No sessions")
		return
	}
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENDPOINT\tROLE\tSTATE\tPEER\tAGE\tIDLE")
	for _, si := range sessions {
		peer := si.PeerID
		if peer == "" {
			peer = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			si.Endpoint, si.Role, si.State, peer,
			time.Since(si.Created).Round(time.Second), time.Since(si.Active).Round(time.Second))
	}
	tw.Flush()
}

func (s *Shell) cmdDisconnect(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: disconnect <uri>|all")
		return
	}
	if args[0] == "all" {
		n := s.backend.DisconnectAll(endpoint.All())
		fmt.Fprintf(s.out, "Closed %d sessions\n", n)
		return
	}
	ep, err := endpoint.Parse(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Invalid URI: %v\n", err)
		return
	}
	if err := s.backend.Disconnect(ep); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "Closed %s\n", ep)
}

func (s *Shell) cmdBrowse(ctx context.Context, args []string) {
	if s.browser == nil {
		fmt.Fprintln(s.out, "Discovery is disabled")
		return
	}
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: browse <service-type> [seconds]")
		return
	}
	timeout := 3 * time.Second
	if len(args) > 1 {
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs <= 0 {
			fmt.Fprintf(s.out, "Invalid timeout: %s\n", args[1])
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	peers, err := s.browser.Browse(ctx, args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	found := 0
	for p := range peers {
		found++
		fmt.Fprintf(s.out, "  %s (%s) device=%s\n", p.Instance, p.Host, p.DeviceID)
		for _, ep := range p.Endpoints() {
			fmt.Fprintf(s.out, "    %s\n", ep)
		}
	}
	fmt.Fprintf(s.out, "Found %d\n", found)
}
