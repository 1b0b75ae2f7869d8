// Command wavescope is a terminal waveform viewer for binary values held in
// a NATS key-value bucket, with live streaming, a signal generator, and an
// FFT view.
//
// Keys: q quit, t/T cycle element type, e endianness, l listener,
// g generator, f FFT, s FFT scale, a auto-fit, +/- zoom, arrows pan,
// x acknowledge status, : command line (open / write / del / ren).
package main

import (
	"context"
	stderrors "errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/c360/wavescope/config"
	"github.com/c360/wavescope/metric"
	"github.com/c360/wavescope/orchestrator"
	"github.com/c360/wavescope/pkg/retry"
	"github.com/c360/wavescope/render"
	"github.com/c360/wavescope/store"
)

const frameInterval = 50 * time.Millisecond

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "wavescope:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		natsURL    = flag.String("url", "", "NATS server URL (overrides config)")
		initialKey = flag.String("key", "", "key to open on startup")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *natsURL != "" {
		cfg.NATS.URL = *natsURL
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := metric.NewMetricsRegistry()

	client, err := store.NewClient(cfg.NATS.URL,
		store.WithBucket(cfg.NATS.Bucket),
		store.WithStreamPrefix(cfg.NATS.StreamPrefix),
		store.WithTimeout(cfg.NATS.Timeout),
		store.WithLogger(logger),
		store.WithMetrics(registry),
	)
	if err != nil {
		return err
	}

	logger.Info("connecting to store", "url", cfg.NATS.URL)
	if err := retry.Do(ctx, retry.Connect(), func() error {
		return client.Connect(ctx)
	}); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := client.Close(closeCtx); err != nil {
			logger.Warn("store close failed", "error", err)
		}
	}()

	orchCfg := orchestrator.DefaultConfig()
	orchCfg.MaxRetainedSamples = cfg.Engine.MaxRetainedSamples
	orchCfg.Listener.PollTimeout = cfg.Engine.PollTimeout
	orchCfg.Listener.BackpressureBudget = cfg.Engine.BackpressureBudget
	orchCfg.Listener.ChannelCapacity = cfg.Engine.ChannelCapacity
	orchCfg.Listener.MaxBufferedBatches = cfg.Engine.MaxBufferedBatches

	orch := orchestrator.New(orchestrator.Deps{
		Store:           client,
		Config:          orchCfg,
		MetricsRegistry: registry,
		Logger:          logger,
	})
	defer func() {
		if err := orch.Close(); err != nil {
			logger.Warn("task shutdown failed", "error", err)
		}
	}()

	if *initialKey != "" {
		orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventSelectKey, Key: *initialKey})
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("terminal raw mode: %w", err)
	}
	defer func() { _ = term.Restore(fd, oldState) }()

	g, ctx := errgroup.WithContext(ctx)

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		g.Go(metricsServer.Start)
		g.Go(func() error {
			<-ctx.Done()
			return metricsServer.Stop()
		})
		logger.Info("metrics endpoint up", "address", metricsServer.Address())
	}

	// The stdin reader blocks without a cancel path, so it runs outside
	// the group; the process exit reclaims it.
	go inputLoop(ctx, orch, stop)

	g.Go(func() error { return frameLoop(ctx, orch, fd) })

	err = g.Wait()
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// frameLoop ticks the orchestrator, tracks terminal size, and repaints.
func frameLoop(ctx context.Context, orch *orchestrator.Orchestrator, fd int) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	lastW, lastH := 0, 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if w, h, err := term.GetSize(fd); err == nil && (w != lastW || h != lastH) {
			lastW, lastH = w, h
			// Reserve rows for the header, footer, and status lines.
			orch.HandleEvent(ctx, orchestrator.Event{
				Kind: orchestrator.EventResize, Width: w - 2, Height: h - 5,
			})
		}

		orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventTick})
		paint(render.Frame(orch.Snapshot()))
	}
}

// paint repaints the whole screen. Raw mode needs explicit CRLF line ends.
func paint(frame string) {
	var b strings.Builder
	b.WriteString("\x1b[H\x1b[2J")
	b.WriteString(strings.ReplaceAll(frame, "\n", "\r\n"))
	os.Stdout.WriteString(b.String())
}

// inputLoop reads raw keystrokes and translates them into events. quit
// cancels the whole group via stop.
func inputLoop(ctx context.Context, orch *orchestrator.Orchestrator, stop context.CancelFunc) {
	buf := make([]byte, 8)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := os.Stdin.Read(buf)
		if err != nil {
			stop()
			return
		}
		if n == 0 {
			continue
		}

		switch key := buf[0]; key {
		case 'q', 3: // q or Ctrl-C
			stop()
			return
		case 't':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventCycleType})
		case 'T':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventCycleType, Reverse: true})
		case 'e':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventToggleEndianness})
		case 'l':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventToggleListener})
		case 'g':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventToggleGenerator})
		case 'f':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventToggleFFT})
		case 's':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventToggleFFTScale})
		case 'a':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventAutoFit})
		case 'x':
			orch.HandleEvent(ctx, orchestrator.Event{Kind: orchestrator.EventAckError})
		case '+', '=':
			orch.HandleEvent(ctx, zoomEvent(orch, 1.25))
		case '-':
			orch.HandleEvent(ctx, zoomEvent(orch, 0.8))
		case 0x1b:
			if ev, ok := arrowEvent(buf[:n]); ok {
				orch.HandleEvent(ctx, ev)
			}
		case ':':
			if ev, ok := commandEvent(); ok {
				orch.HandleEvent(ctx, ev)
			}
		}
	}
}

// zoomEvent anchors zoom at the viewport center.
func zoomEvent(orch *orchestrator.Orchestrator, factor float64) orchestrator.Event {
	vp := orch.Snapshot().Viewport
	return orchestrator.Event{
		Kind:     orchestrator.EventZoom,
		Factor:   factor,
		AnchorPX: float64(vp.Width) / 2,
		AnchorPY: float64(vp.Height) / 2,
	}
}

// arrowEvent maps CSI cursor sequences to pan events.
func arrowEvent(seq []byte) (orchestrator.Event, bool) {
	if len(seq) < 3 || seq[1] != '[' {
		return orchestrator.Event{}, false
	}
	const step = 4.0
	switch seq[2] {
	case 'A':
		return orchestrator.Event{Kind: orchestrator.EventPan, DY: -step}, true
	case 'B':
		return orchestrator.Event{Kind: orchestrator.EventPan, DY: step}, true
	case 'C':
		return orchestrator.Event{Kind: orchestrator.EventPan, DX: step}, true
	case 'D':
		return orchestrator.Event{Kind: orchestrator.EventPan, DX: -step}, true
	}
	return orchestrator.Event{}, false
}

// commandEvent reads one command line in raw mode: open <key>,
// write <values>, del, ren <key>, x <min> <max>, y <min> <max>.
func commandEvent() (orchestrator.Event, bool) {
	line, ok := readLine()
	if !ok {
		return orchestrator.Event{}, false
	}

	verb, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	rest = strings.TrimSpace(rest)

	switch verb {
	case "open":
		if rest == "" {
			return orchestrator.Event{}, false
		}
		return orchestrator.Event{Kind: orchestrator.EventSelectKey, Key: rest}, true
	case "write":
		return orchestrator.Event{Kind: orchestrator.EventWriteValue, Text: rest}, true
	case "del":
		return orchestrator.Event{Kind: orchestrator.EventDeleteKey}, true
	case "ren":
		if rest == "" {
			return orchestrator.Event{}, false
		}
		return orchestrator.Event{Kind: orchestrator.EventRenameKey, Key: rest}, true
	case "x", "y":
		var min, max float64
		if _, err := fmt.Sscanf(rest, "%g %g", &min, &max); err != nil {
			return orchestrator.Event{}, false
		}
		kind := orchestrator.EventSetXLimits
		if verb == "y" {
			kind = orchestrator.EventSetYLimits
		}
		return orchestrator.Event{Kind: kind, Min: min, Max: max}, true
	}
	return orchestrator.Event{}, false
}

// readLine collects bytes until CR, echoing them at the bottom of the
// screen. Escape aborts.
func readLine() (string, bool) {
	os.Stdout.WriteString("\x1b[999;1H:")

	var line []byte
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return "", false
		}
		switch b := buf[0]; b {
		case '\r', '\n':
			return string(line), true
		case 0x1b:
			return "", false
		case 0x7f, '\b':
			if len(line) > 0 {
				line = line[:len(line)-1]
				os.Stdout.WriteString("\b \b")
			}
		default:
			if b >= 0x20 && b < 0x7f {
				line = append(line, b)
				os.Stdout.Write(buf)
			}
		}
	}
}
