// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// bureau-inspect is a terminal inspector for the live object tree of an
// instrumented application. It connects to the probe running inside
// the application, keeps a replica of the application's objects, and
// shows them in tabbed panes: the whole object tree, the widget tree,
// item models and their contents, graphics scenes and their items,
// state machines with their states and transitions, script engines,
// web pages and selection models.
//
// Picking an object in the application (for example ctrl+shift+click
// on a widget) reveals and selects it in the matching pane. Selecting
// a widget or graphics item in the inspector asks the application to
// highlight it.
//
// Three sources of objects are supported:
//
// Probe mode (default): connects to the probe socket named by the
// configuration or --address.
//
// Demo mode (--demo): runs a small simulated application in-process,
// connected through the same wire protocol as a real probe.
//
// Replay mode (--replay): loads a capture written by --capture and
// shows it without a probe. With --follow the capture is reloaded
// whenever it is rewritten.
//
// With --dump, the object tree is printed to stdout instead of starting
// the terminal UI.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/bureau-foundation/inspector/lib/clock"
	"github.com/bureau-foundation/inspector/lib/config"
	"github.com/bureau-foundation/inspector/lib/inspector"
	"github.com/bureau-foundation/inspector/lib/inspectorui"
	"github.com/bureau-foundation/inspector/lib/objectgraph"
	"github.com/bureau-foundation/inspector/lib/probewire"
	"github.com/bureau-foundation/inspector/lib/projection"
	"github.com/bureau-foundation/inspector/lib/version"
	tea "github.com/charmbracelet/bubbletea"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			os.Exit(coder.ExitCode())
		}
		os.Exit(1)
	}
}

// flags holds the command line.
type flags struct {
	configPath string
	network    string
	address    string
	demo       bool
	capture    string
	replay     string
	dump       bool
	follow     bool
	logOutput  string
}

func run() error {
	var options flags
	flagSet := pflag.NewFlagSet("bureau-inspect", pflag.ContinueOnError)
	flagSet.StringVar(&options.configPath, "config", "", "configuration file (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&options.network, "network", "", "probe network, unix or tcp (overrides configuration)")
	flagSet.StringVar(&options.address, "address", "", "probe socket path or host:port (overrides configuration)")
	flagSet.BoolVar(&options.demo, "demo", false, "inspect a simulated application instead of a probe")
	flagSet.StringVar(&options.capture, "capture", "", "write the object tree to this capture file on exit")
	flagSet.StringVar(&options.replay, "replay", "", "inspect a capture file instead of a probe")
	flagSet.BoolVar(&options.follow, "follow", false, "with --replay, reload the capture whenever it is rewritten")
	flagSet.BoolVar(&options.dump, "dump", false, "print the object tree to stdout and exit instead of starting the UI")
	flagSet.StringVar(&options.logOutput, "log-output", "", "write JSON log records to this file (in addition to the status bar)")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		if err := version.Print(os.Stdout); err != nil {
			return internalError("%w", err)
		}
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return validationError("%w", err)
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return validationError("unexpected argument: %s", args[0])
	}
	if options.demo && options.replay != "" {
		return validationError("--demo and --replay are mutually exclusive")
	}
	if options.follow && (options.replay == "" || options.dump) {
		return validationError("--follow needs --replay and the terminal UI")
	}

	cfg, err := loadConfig(options)
	if err != nil {
		return err
	}
	level, err := inspectorui.ParseLevel(cfg.Log.Level)
	if err != nil {
		return validationError("%w", err)
	}
	var fileHandler slog.Handler
	if cfg.Log.Output != "" {
		handler, closeFile, err := openFileLogHandler(cfg.Log.Output)
		if err != nil {
			return validationError("cannot open log file %s: %w", cfg.Log.Output, err)
		}
		defer closeFile()
		fileHandler = handler
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if options.dump {
		// No terminal UI: warnings go to stderr, and to the log file
		// when one is configured.
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		if fileHandler != nil {
			handler = fanoutHandler{handler, fileHandler}
		}
		return runDump(ctx, options, cfg, slog.New(handler))
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return validationError("bureau-inspect needs a terminal on stdout").
			withHint("Use --dump to print the object tree instead.")
	}

	tuiHandler := inspectorui.NewTUILogHandler(level, fileHandler)
	logger := slog.New(tuiHandler)

	matchMode, err := projection.ParseMatchMode(cfg.Search.Mode)
	if err != nil {
		return validationError("%w", err)
	}

	objects, err := connect(ctx, options, cfg, logger)
	if err != nil {
		return err
	}
	defer objects.close()

	sessionOptions := inspector.Options{
		Kinds:     sessionKinds(cfg.Kinds),
		MatchMode: matchMode,
		Logger:    logger.With("component", "session"),
	}
	modelOptions := inspectorui.Options{
		Events: objects.events,
		Logger: logger.With("component", "ui"),
	}
	if objects.link != nil {
		sessionOptions.Highlighter = objects.link
		modelOptions.Resync = objects.link.Resync
	}

	session := inspector.NewSession(sessionOptions)
	defer session.Close()
	if objects.snapshot != nil {
		if err := session.HandleEvent(probewire.Event{Snapshot: objects.snapshot}); err != nil {
			return internalError("replay %s: %w", options.replay, err)
		}
	}

	model := inspectorui.NewModel(session, modelOptions)
	program := tea.NewProgram(model, tea.WithAltScreen())
	tuiHandler.SetProgram(program)

	if _, err := program.Run(); err != nil {
		return internalError("%w", err)
	}

	// The program has stopped, so the session is no longer in use by
	// the UI goroutine.
	if options.capture != "" {
		if err := writeCaptureFile(options.capture, session.Graph().Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// objectSource is where the objects come from: a probe link, a
// capture loaded once, or a capture followed as it is rewritten.
type objectSource struct {
	link     *probewire.Link
	snapshot *objectgraph.Snapshot
	events   <-chan probewire.Event
	stop     func()
}

func (objects objectSource) close() {
	if objects.link != nil {
		objects.link.Close()
	}
	if objects.stop != nil {
		objects.stop()
	}
}

// connect opens the source of objects named by the command line.
func connect(ctx context.Context, options flags, cfg *config.Config, logger *slog.Logger) (objectSource, error) {
	switch {
	case options.replay != "" && options.follow:
		events, stop, err := probewire.WatchCapture(options.replay, clock.Real(), logger.With("component", "capture"))
		if err != nil {
			return objectSource{}, validationError("cannot follow capture %s: %w", options.replay, err)
		}
		return objectSource{events: events, stop: stop}, nil
	case options.replay != "":
		snapshot, err := readCaptureFile(options.replay)
		if err != nil {
			return objectSource{}, err
		}
		return objectSource{snapshot: &snapshot}, nil
	}

	compression := probewire.Compression{
		Enabled:     cfg.Probe.Compression.Enabled,
		MinimumSize: cfg.Probe.Compression.MinimumSize,
	}
	linkOptions := probewire.LinkOptions{
		Compression: compression,
		Logger:      logger.With("component", "link"),
	}
	var link *probewire.Link
	var err error
	if options.demo {
		link, err = startDemo(ctx, compression, linkOptions, logger.With("component", "demo"))
		if err != nil {
			return objectSource{}, err
		}
	} else {
		link, err = probewire.Dial(ctx, cfg.Probe.Network, cfg.Probe.Address, linkOptions)
		if err != nil {
			return objectSource{}, transientError("%w", err).
				withHint("Start the application with the probe loaded, or try --demo.")
		}
	}
	return objectSource{link: link, events: link.Events()}, nil
}

// loadConfig reads the configuration and applies command line
// overrides.
func loadConfig(options flags) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if options.configPath != "" {
		cfg, err = config.LoadFile(options.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, validationError("%w", err)
	}
	if options.network != "" {
		cfg.Probe.Network = options.network
	}
	if options.address != "" {
		cfg.Probe.Address = options.address
	}
	if options.logOutput != "" {
		cfg.Log.Output = options.logOutput
	}
	if err := cfg.Validate(); err != nil {
		return nil, validationError("invalid configuration: %w", err)
	}
	return cfg, nil
}

// sessionKinds converts the configured kind names.
func sessionKinds(kinds config.KindsConfig) inspector.Kinds {
	return inspector.Kinds{
		Widget:         objectgraph.Kind(kinds.Widget),
		GraphicsScene:  objectgraph.Kind(kinds.GraphicsScene),
		ItemModel:      objectgraph.Kind(kinds.ItemModel),
		ModelCell:      objectgraph.Kind(kinds.ModelCell),
		StateMachine:   objectgraph.Kind(kinds.StateMachine),
		State:          objectgraph.Kind(kinds.State),
		Transition:     objectgraph.Kind(kinds.Transition),
		ScriptEngine:   objectgraph.Kind(kinds.ScriptEngine),
		WebPage:        objectgraph.Kind(kinds.WebPage),
		SelectionModel: objectgraph.Kind(kinds.SelectionModel),
		Connection:     objectgraph.Kind(kinds.Connection),
		MetaType:       objectgraph.Kind(kinds.MetaType),
	}
}

// startDemo runs the demo application and its probe in-process and
// returns the inspector's end of the connection.
func startDemo(ctx context.Context, compression probewire.Compression, linkOptions probewire.LinkOptions, logger *slog.Logger) (*probewire.Link, error) {
	probe, err := newDemoProbe(clock.Real(), logger)
	if err != nil {
		return nil, internalError("%w", err)
	}
	server, client := net.Pipe()
	go func() {
		err := probewire.Serve(ctx, server, probe.feed, probewire.ServeOptions{
			Compression:    compression,
			Logger:         logger,
			OnSelectObject: probe.highlight,
		})
		if err != nil {
			logger.Warn("demo probe stopped", "error", err)
		}
	}()
	go probe.run(ctx)
	return probewire.NewLink(client, linkOptions), nil
}

func readCaptureFile(path string) (objectgraph.Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return objectgraph.Snapshot{}, validationError("cannot open capture: %w", err)
	}
	defer file.Close()
	snapshot, err := probewire.ReadCapture(file)
	if err != nil {
		return objectgraph.Snapshot{}, validationError("cannot read capture %s: %w", path, err)
	}
	return snapshot, nil
}

func writeCaptureFile(path string, snapshot objectgraph.Snapshot) error {
	file, err := os.Create(path)
	if err != nil {
		return internalError("cannot create capture: %w", err)
	}
	if err := probewire.WriteCapture(file, snapshot); err != nil {
		file.Close()
		return internalError("cannot write capture %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return internalError("cannot write capture %s: %w", path, err)
	}
	return nil
}

// fanoutHandler is a slog.Handler that sends each record to multiple
// underlying handlers. A record is enabled if any sub-handler is
// enabled for that level.
type fanoutHandler []slog.Handler

func (handlers fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (handlers fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range handlers {
		if handler.Enabled(ctx, record.Level) {
			if err := handler.Handle(ctx, record); err != nil {
				return err
			}
		}
	}
	return nil
}

func (handlers fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithAttrs(attrs)
	}
	return derived
}

func (handlers fanoutHandler) WithGroup(name string) slog.Handler {
	derived := make(fanoutHandler, len(handlers))
	for index, handler := range handlers {
		derived[index] = handler.WithGroup(name)
	}
	return derived
}

// openFileLogHandler creates a slog.JSONHandler that writes to the
// given file path. Returns the handler and a cleanup function that
// closes the file.
func openFileLogHandler(path string) (slog.Handler, func(), error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	handler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: slog.LevelDebug})
	return handler, func() { file.Close() }, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `Bureau inspector: browse the live object tree of an instrumented application.

By default, connects to the probe socket named in the configuration
file ($%s) or ${XDG_RUNTIME_DIR:-/tmp}/bureau-inspect.sock.

Usage:
  bureau-inspect [flags]

Examples:
  # Inspect the application listening on the default socket
  bureau-inspect

  # Inspect a probe listening on TCP
  bureau-inspect --network tcp --address 127.0.0.1:7878

  # Try the inspector against a simulated application
  bureau-inspect --demo

  # Save the object tree on exit, then browse it offline
  bureau-inspect --capture app.binspect
  bureau-inspect --replay app.binspect

  # Watch a capture that another process rewrites
  bureau-inspect --replay app.binspect --follow

  # Print the object tree of a running application
  bureau-inspect --dump

Flags:
`, config.EnvironmentVariable)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
