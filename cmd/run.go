package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/0xlemi/fiddletone/internal/audio"
	"github.com/0xlemi/fiddletone/internal/engine"
	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/0xlemi/fiddletone/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// run analyses capturer until the user quits, the context is cancelled or
// a finite source runs out.
func run(ctx context.Context, o *options, capturer audio.Capturer, title string, out io.Writer) error {
	target, err := pitch.TargetFromName(o.target)
	if err != nil {
		return err
	}
	cfg := o.cfg
	cfg.Target = target

	logger, closeLog, err := setupLogging(o.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	cfg.Logger = logger

	e := engine.New(pitch.NewAutocorrelation(), cfg)
	cfg.Logger.Info("session configured",
		"engine", e.ID(),
		"target", target.Name,
		"frame_size", cfg.FrameSize,
		"realtime", o.realtime)

	if o.plain || !isTerminal(os.Stdout) {
		return runPlain(ctx, e, capturer, o, cfg, out)
	}
	return runTUI(ctx, e, capturer, o, cfg, title)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// setupLogging sends logs to path through tea.LogToFile, or discards them
// when path is empty. The TUI owns the terminal so nothing is logged there.
func setupLogging(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := tea.LogToFile(path, "fiddletone")
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { f.Close() }, nil
}

func newDriver(e *engine.Engine, c audio.Capturer, o *options, cfg engine.Config, sink engine.Sink) engine.Driver {
	if o.realtime {
		return engine.NewRealtime(e, c, pitch.NewAutocorrelation(), cfg, sink)
	}
	return engine.NewLoop(e, c, cfg, sink)
}

func runTUI(ctx context.Context, e *engine.Engine, c audio.Capturer, o *options, cfg engine.Config, title string) error {
	var p *tea.Program
	driver := newDriver(e, c, o, cfg, func(res engine.Result) {
		p.Send(ui.ResultMsg(res))
	})

	p = tea.NewProgram(
		ui.NewModel(ctx, e, driver, title),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if stopErr := driver.Stop(); stopErr != nil {
		cfg.Logger.Warn("stopping capture", "err", stopErr)
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// runPlain prints one line per metrics refresh and a session summary
func runPlain(ctx context.Context, e *engine.Engine, c audio.Capturer, o *options, cfg engine.Config, out io.Writer) error {
	var (
		sum   float64
		count int
	)
	driver := newDriver(e, c, o, cfg, func(res engine.Result) {
		if res.Voiced {
			sum += res.Accuracy
			count++
		}
		if res.Refreshed {
			fmt.Fprintln(out, formatResult(res))
		}
	})

	if err := driver.Start(ctx); err != nil {
		if errors.Is(err, audio.ErrPermissionDenied) {
			return fmt.Errorf("%w: allow microphone access for this terminal and try again", err)
		}
		return err
	}

	select {
	case <-driver.Done():
	case <-ctx.Done():
	}
	if err := driver.Stop(); err != nil {
		return err
	}

	if count == 0 {
		fmt.Fprintln(out, "No sound detected")
		return nil
	}
	acc := sum / float64(count)
	fmt.Fprintf(out, "Accuracy against %s: %s %.0f%% over %d readings\n",
		e.Target().Name, ui.Stars(acc), acc*100, count)
	return nil
}

func formatResult(res engine.Result) string {
	m := res.Metrics
	metrics := fmt.Sprintf("stability %3s  dynamics %3s  warmth %3s  vibrato %3s",
		m.Stability, m.Dynamics, m.Warmth, m.Vibrato)
	if !res.Voiced {
		return fmt.Sprintf("%-4s %13s %10s  %s", "--", "", "", metrics)
	}
	return fmt.Sprintf("%-4s %+7.1f cents %7.2f Hz  %s",
		res.Note, res.Sample.Cents, res.Detection.Frequency, metrics)
}
