// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/ffutop/relay8x/internal/config"
	"github.com/ffutop/relay8x/internal/logging"
	"github.com/ffutop/relay8x/internal/metrics"
	"github.com/ffutop/relay8x/relay8x"
	"github.com/ffutop/relay8x/session"
	"github.com/ffutop/relay8x/transport"
	"github.com/ffutop/relay8x/transport/local"
	"github.com/ffutop/relay8x/transport/rs232"
	"github.com/ffutop/relay8x/transport/tcp"
)

var version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func newFlagSet(stderr io.Writer) *pflag.FlagSet {
	flags := pflag.NewFlagSet("relay8x", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SortFlags = false

	flags.StringP("config", "c", "", "Configuration file path.")
	flags.StringP("transport", "t", "serial", "Bus transport (serial, tcp, local).")
	flags.StringP("device", "d", "/dev/ttyUSB0", "Serial port device name.")
	flags.String("tcp-address", "", "Serial device server address (host:port).")
	flags.IntP("address", "a", 1, "Address of the first card in the chain.")
	flags.Int("cards", 1, "Number of cards in the chain.")
	flags.StringSlice("card", nil, "Cards to address, e.g. 1,3-4 (default all cards).")
	flags.StringSlice("relay", nil, "Relays to switch, e.g. 1,3,5-8 (default all relays).")
	flags.Bool("wildcard", false, "Accept any responding address for requests sent to address 0.")
	flags.Duration("timeout", transport.DefaultTimeout, "Timeout of a single read or write.")
	flags.Duration("init-deadline", session.DefaultInitDeadline, "Deadline of the init handshake.")
	flags.Duration("rqst-pause", 0, "Pause between requests.")
	flags.StringP("log-level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	flags.StringP("log-file", "L", "", "Log file name ('-' for logging to STDOUT only).")
	flags.String("log-format", "text", "Log format (text, json, console).")
	flags.String("listen", ":4001", "Listen address of the device server (serve only).")
	flags.String("metrics-textfile", "", "Write bus metrics to this file on exit.")
	flags.Bool("version", false, "Print the version and exit.")

	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: relay8x [flags] <command>\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  set <on|off>  switch relays on or off\n")
		fmt.Fprintf(stderr, "  reset         switch relays off\n")
		fmt.Fprintf(stderr, "  toggle        flip relays\n")
		fmt.Fprintf(stderr, "  init          only initialize the chain\n")
		fmt.Fprintf(stderr, "  serve         expose the bus on a TCP port\n\n")
		fmt.Fprintf(stderr, "Flags:\n%s", flags.FlagUsages())
	}
	return flags
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := newFlagSet(stderr)
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if v, _ := flags.GetBool("version"); v {
		fmt.Fprintf(stdout, "relay8x %s\n", version)
		return exitOK
	}

	rest := flags.Args()
	serving := len(rest) > 0 && rest[0] == "serve"
	var kind relay8x.CommandKind
	var err error
	if serving {
		if len(rest) != 1 {
			err = fmt.Errorf("serve takes no arguments")
		}
	} else {
		kind, err = parseCommand(rest)
	}
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		flags.Usage()
		return exitUsage
	}

	configFile, _ := flags.GetString("config")
	cfg, err := config.LoadConfig(configFile, flags)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitError
	}

	cardArgs, _ := flags.GetStringSlice("card")
	relayArgs, _ := flags.GetStringSlice("relay")
	cards, relays, err := resolveIndices(cardArgs, relayArgs, cfg.Bus.Cards)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitUsage
	}

	_, closer := logging.Setup(cfg.Log)
	defer closer.Close()

	reg := metrics.NewRegistry()
	busMetrics := metrics.NewBusMetrics(reg)
	if cfg.Metrics.Textfile != "" {
		defer func() {
			if err := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); err != nil {
				slog.Error("Failed to write metrics textfile", "path", cfg.Metrics.Textfile, "err", err)
			}
		}()
	}

	ch, err := openChannel(cfg.Bus)
	if err != nil {
		slog.Error("Failed to open bus", "err", err)
		return exitError
	}
	if serving {
		return serve(ctx, cfg, ch)
	}

	opts := []session.Option{
		session.WithMetrics(busMetrics),
		session.WithTimeout(cfg.Bus.Timeout),
		session.WithInitDeadline(cfg.Bus.InitDeadline),
		session.WithRequestPause(cfg.Bus.RqstPause),
	}
	if cfg.Bus.AddressWildcard {
		opts = append(opts, session.WithAddressWildcard())
	}
	s := session.Open(ch, byte(cfg.Bus.StartAddress), opts...)
	defer func() {
		if err := s.Close(); err != nil {
			slog.Warn("Failed to close bus", "err", err)
		}
	}()

	slog.Info("Initializing relay chain", "transport", cfg.Bus.Transport, "start", cfg.Bus.StartAddress, "cards", cfg.Bus.Cards)
	if err := s.Init(ctx); err != nil {
		slog.Error("Init failed", "err", err)
		return exitError
	}
	if kind == relay8x.CmdInit {
		fmt.Fprintf(stdout, "initialized\n")
		return exitOK
	}

	resps, err := apply(ctx, s, kind, cards, relays)
	for i, resp := range resps {
		fmt.Fprintf(stdout, "card %d: %s relays %v\n", cards[i], resp, relay8x.Unpack(resp.Data()))
	}
	if err != nil {
		slog.Error("Command failed", "command", kind, "err", err)
		return exitError
	}
	return exitOK
}

// parseCommand maps the positional arguments to a command kind.
func parseCommand(args []string) (relay8x.CommandKind, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing command")
	}
	switch args[0] {
	case "set":
		if len(args) != 2 {
			return 0, fmt.Errorf("set needs a state: on or off")
		}
		switch args[1] {
		case "on":
			return relay8x.CmdSet, nil
		case "off":
			return relay8x.CmdReset, nil
		default:
			return 0, fmt.Errorf("unknown state %q, want on or off", args[1])
		}
	case "reset", "toggle", "init":
		if len(args) != 1 {
			return 0, fmt.Errorf("%s takes no arguments", args[0])
		}
		if args[0] == "reset" {
			return relay8x.CmdReset, nil
		}
		if args[0] == "toggle" {
			return relay8x.CmdToggle, nil
		}
		return relay8x.CmdInit, nil
	default:
		return 0, fmt.Errorf("unknown command %q", args[0])
	}
}

// resolveIndices parses the --card and --relay values. No cards means every
// card of the chain, no relays means all eight.
func resolveIndices(cardArgs, relayArgs []string, chainLength int) (relay8x.CardIndex, relay8x.RelayIndex, error) {
	var cards relay8x.CardIndex
	for _, arg := range cardArgs {
		ids, err := relay8x.ParseIndex(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --card %q: %w", arg, err)
		}
		cards = append(cards, ids...)
	}
	if len(cards) == 0 {
		for card := relay8x.MinCard; card <= chainLength; card++ {
			cards = append(cards, card)
		}
	}

	var relays relay8x.RelayIndex
	for _, arg := range relayArgs {
		ids, err := relay8x.ParseIndex(arg)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid --relay %q: %w", arg, err)
		}
		relays = append(relays, ids...)
	}
	if len(relays) == 0 {
		relays = relay8x.AllRelays()
	}
	return cards, relays, nil
}

func openChannel(bus config.BusConfig) (transport.Channel, error) {
	switch bus.Transport {
	case "serial":
		p := rs232.NewPort(bus.Serial.Device)
		p.Exclusive = bus.Serial.Exclusive
		return p, nil
	case "tcp":
		c := tcp.NewClient(bus.Tcp.Address)
		if bus.Tcp.DialTimeout > 0 {
			c.DialTimeout = bus.Tcp.DialTimeout
		}
		return c, nil
	case "local":
		return local.NewClient(bus.Local), nil
	default:
		return nil, fmt.Errorf("unknown transport %q", bus.Transport)
	}
}

// serve runs the TCP device server until ctx is done.
func serve(ctx context.Context, cfg *config.Config, bus transport.Channel) int {
	defer bus.Close()

	srv := tcp.NewServer(cfg.Server.Listen, bus)
	srv.Quiet = cfg.Server.Quiet
	slog.Info("Starting relay device server...", "transport", cfg.Bus.Transport, "listen", cfg.Server.Listen)
	if err := srv.Start(ctx); err != nil {
		slog.Error("Device server stopped with error", "err", err)
		return exitError
	}
	slog.Info("Goodbye.")
	return exitOK
}

func apply(ctx context.Context, s *session.Session, kind relay8x.CommandKind, cards relay8x.CardIndex, relays relay8x.RelayIndex) ([]relay8x.Frame, error) {
	started := time.Now()
	defer func() {
		slog.Debug("Command finished", "command", kind, "cards", len(cards), "elapsed", time.Since(started))
	}()

	switch kind {
	case relay8x.CmdSet:
		return s.Set(ctx, cards, relays)
	case relay8x.CmdReset:
		return s.Reset(ctx, cards, relays)
	case relay8x.CmdToggle:
		return s.Toggle(ctx, cards, relays)
	default:
		return nil, fmt.Errorf("%w: %s", relay8x.ErrUnknownCommand, kind)
	}
}
