// Command ca-node runs a CoAP connectivity adapter node.
//
// It opens the configured TCP/UDP listeners (TLS/DTLS when a certificate or
// PSK is configured), logs traffic, and optionally echoes requests,
// advertises itself over mDNS and offers an interactive shell.
//
// Usage:
//
//	ca-node [flags]
//
// Flags:
//
//	-config string        Configuration file path (YAML)
//	-cert-dir string      Certificate store; a self-signed identity is created if empty
//	-secure               Add the default coaps listeners
//	-insecure             Skip peer certificate verification
//	-log-level string     Log level: trace, debug, info, warn, error
//	-protocol-log string  Write a protocol capture for ca-log
//	-echo                 Answer every request with its payload
//	-mdns                 Advertise listeners over DNS-SD
//	-instance string      DNS-SD instance name (default: host name)
//	-interactive          Start the command shell
//
// Examples:
//
//	# Plaintext echo server on the CoAP ports
//	ca-node -echo
//
//	# Secure node with a generated identity and a capture file
//	ca-node -secure -cert-dir /var/lib/ca-node -insecure -protocol-log node.calog
//
//	# Interactive client
//	ca-node -config node.yaml -interactive
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/iotivity/ca-go/cmd/ca-node/interactive"
	"github.com/iotivity/ca-go/pkg/cert"
	"github.com/iotivity/ca-go/pkg/config"
	"github.com/iotivity/ca-go/pkg/discovery"
	"github.com/iotivity/ca-go/pkg/endpoint"
	"github.com/iotivity/ca-go/pkg/log"
	"github.com/iotivity/ca-go/pkg/secure"
	"github.com/iotivity/ca-go/pkg/transport"
	"github.com/iotivity/ca-go/pkg/wire"
)

// Flags holds the command-line overrides.
type Flags struct {
	ConfigFile  string
	CertDir     string
	Secure      bool
	Insecure    bool
	LogLevel    string
	ProtocolLog string
	Echo        bool
	MDNS        bool
	Instance    string
	Interactive bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.CertDir, "cert-dir", "", "Certificate store directory")
	flag.BoolVar(&flags.Secure, "secure", false, "Add the default coaps listeners")
	flag.BoolVar(&flags.Insecure, "insecure", false, "Skip peer certificate verification (testing only)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write a protocol capture to this file")
	flag.BoolVar(&flags.Echo, "echo", false, "Answer every request with its payload")
	flag.BoolVar(&flags.MDNS, "mdns", false, "Advertise listeners over DNS-SD")
	flag.StringVar(&flags.Instance, "instance", "", "DNS-SD instance name (default: host name)")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the command shell")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ca-node: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the file, if any, and applies the flags.
func loadConfig(f Flags) (*config.Config, error) {
	cfg := config.Default()
	if f.ConfigFile != "" {
		var err error
		if cfg, err = config.Load(f.ConfigFile); err != nil {
			return nil, err
		}
	}

	if f.Secure && !cfg.HasSecureListener() {
		for _, l := range transport.DefaultListeners(true) {
			if l.Secure {
				cfg.Listen = append(cfg.Listen, config.Listener{
					Adapter: strings.ToLower(l.Adapter.String()),
					Secure:  true,
					Address: l.Address,
				})
			}
		}
	}
	if f.CertDir != "" {
		cfg.Security.CertDir = f.CertDir
	}
	if f.Insecure {
		cfg.Security.InsecureSkipVerify = true
	}
	if f.LogLevel != "" {
		cfg.Logging.Level = f.LogLevel
	}
	if f.ProtocolLog != "" {
		cfg.Logging.ProtocolLog = f.ProtocolLog
	}
	if f.MDNS {
		cfg.Discovery.Enabled = true
	}
	if f.Instance != "" {
		cfg.Discovery.Instance = f.Instance
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, cfg config.Logging) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// protocolLogger returns the capture sink and a close function. At trace
// level events are mirrored into the operational log.
func protocolLogger(path string, logger *slog.Logger) (log.Logger, func(), error) {
	var sinks []log.Logger
	closeFn := func() {}
	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening protocol log: %w", err)
		}
		sinks = append(sinks, fl)
		closeFn = func() { _ = fl.Close() }
	}
	if logger.Enabled(context.Background(), secure.LevelTrace) {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}
	if len(sinks) == 0 {
		return log.NoopLogger{}, closeFn, nil
	}
	return log.NewMultiLogger(sinks...), closeFn, nil
}

func run() error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	var shell *interactive.Shell
	var out io.Writer = os.Stderr
	var browser *discovery.Browser
	if cfg.Discovery.Enabled {
		browser = discovery.NewBrowser(discovery.BrowserConfig{})
	}

	// The shell needs the adapter, which needs the logger; the backend is
	// bound late through lazyBackend.
	backend := &lazyBackend{}
	if flags.Interactive {
		if shell, err = interactive.New(backend, browser); err != nil {
			return err
		}
		out = shell.Stdout()
	}

	logger, err := newLogger(out, cfg.Logging)
	if err != nil {
		return err
	}

	sec := cfg.Security
	if cfg.HasSecureListener() && sec.CertDir == "" && sec.Certificate == "" && sec.PSK == nil {
		dir, err := os.UserConfigDir()
		if err != nil {
			return err
		}
		cfg.Security.CertDir = filepath.Join(dir, "ca-node")
	}

	var deviceID string
	if cfg.Security.CertDir != "" {
		id, err := ensureIdentity(cert.NewFileStore(cfg.Security.CertDir), logger)
		if err != nil {
			return err
		}
		if u, err := id.DeviceID(); err == nil {
			deviceID = u.String()
		}
	}

	protocol, closeProtocol, err := protocolLogger(cfg.Logging.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeProtocol()

	tc, err := cfg.Transport(logger, protocol)
	if err != nil {
		return err
	}

	n := &node{logger: logger, echo: flags.Echo}
	if shell != nil {
		n.onMessage = func(ep endpoint.Endpoint, m wire.Summary) { shell.PrintMessage(ep, m) }
	}
	adapter, err := transport.New(tc, n)
	if err != nil {
		return err
	}
	n.out = adapter
	backend.Backend = adapter

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		return err
	}
	for _, addr := range adapter.Addrs() {
		logger.Info("listening", "addr", addr)
	}

	if cfg.Discovery.Enabled {
		adv := discovery.NewAdvertiser(discovery.AdvertiserConfig{TTL: discovery.DefaultTTL, Logger: logger})
		instance := cfg.Discovery.Instance
		if instance == "" {
			instance, _ = os.Hostname()
		}
		info, err := advertisement(adapter, instance, deviceID)
		if err == nil {
			err = adv.Advertise(ctx, info)
		}
		if err != nil {
			logger.Warn("mdns advertisement failed", "error", err)
		}
		defer adv.Stop()
	}

	if shell != nil {
		go shell.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	return adapter.Stop()
}

// lazyBackend forwards to an adapter bound after construction.
type lazyBackend struct {
	interactive.Backend
}
