package main

import (
	"fmt"
	"io"

	"github.com/0xlemi/fiddletone/internal/audio"
	"github.com/0xlemi/fiddletone/internal/engine"
	"github.com/0xlemi/fiddletone/internal/pitch"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultAmplification = 1.0

// options are the flag values shared by every command
type options struct {
	cfg      engine.Config
	target   string
	realtime bool
	plain    bool
	logFile  string
}

func newOptions() *options {
	return &options{
		cfg:    engine.DefaultConfig(),
		target: engine.DefaultConfig().Target.Name,
	}
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.IntVar(&o.cfg.FrameSize, "frame-size", o.cfg.FrameSize, "samples per analysis frame, a power of two")
	fs.StringVarP(&o.target, "target", "t", o.target, "target note, e.g. G3, D4, A4, E5 or Bb3")
	fs.DurationVar(&o.cfg.TickInterval, "tick", o.cfg.TickInterval, "analysis cadence")
	fs.DurationVar(&o.cfg.RefreshInterval, "refresh", o.cfg.RefreshInterval, "how often tone metrics are recomputed")
	fs.DurationVar(&o.cfg.Window, "window", o.cfg.Window, "how far back tone metrics look")
	fs.BoolVar(&o.realtime, "realtime", false, "run detection on a dedicated capture thread")
	fs.IntVar(&o.cfg.Decimation, "decimation", o.cfg.Decimation, "with --realtime, forward every Nth detection")
	fs.IntVar(&o.cfg.QueueSize, "queue", o.cfg.QueueSize, "with --realtime, detections buffered before dropping")
	fs.IntVar(&o.cfg.SampleCapacity, "history", o.cfg.SampleCapacity, "tone samples kept for scoring")
	fs.IntVar(&o.cfg.TunerCapacity, "trend", o.cfg.TunerCapacity, "pitch readings kept for the trend line")
	fs.BoolVar(&o.plain, "plain", false, "print metric lines instead of the interactive display")
	fs.StringVar(&o.logFile, "log", "", "write debug logs to this file")
}

func newRootCmd() *cobra.Command {
	o := newOptions()
	var gain float32

	root := &cobra.Command{
		Use:   "fiddletone",
		Short: "Live pitch and tone-quality feedback for string practice",
		Long: `fiddletone listens to the default input device, shows the note being
played against a target string and scores the tone for stability,
dynamics, warmth and vibrato.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTune(cmd, o, gain)
		},
	}
	bindFlags(root.PersistentFlags(), o)

	tune := &cobra.Command{
		Use:   "tune",
		Short: "Analyse the microphone (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTune(cmd, o, gain)
		},
	}
	for _, c := range []*cobra.Command{root, tune} {
		fs := c.Flags()
		fs.IntVar(&o.cfg.SampleRate, "sample-rate", o.cfg.SampleRate, "input sample rate in Hz")
		fs.IntVar(&o.cfg.Channels, "channels", o.cfg.Channels, "input channels, mixed down to mono")
		fs.Float32Var(&gain, "gain", defaultAmplification, "input amplification")
	}

	var hop int
	replay := &cobra.Command{
		Use:   "replay <file.wav>",
		Short: "Analyse a recorded WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := audio.NewWAVCapturer(args[0], o.cfg.FrameSize, hop)
			return run(cmd.Context(), o, c, "Fiddletone - "+args[0], cmd.OutOrStdout())
		},
	}
	replay.Flags().IntVar(&hop, "hop", 0, "samples between frame starts (default: one frame)")

	notes := &cobra.Command{
		Use:   "notes",
		Short: "Print the open-string reference pitches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printNotes(cmd.OutOrStdout())
		},
	}

	root.AddCommand(tune, replay, notes)
	return root
}

func runTune(cmd *cobra.Command, o *options, gain float32) error {
	c, err := audio.NewPortAudioCapturer(o.cfg.FrameSize, o.cfg.SampleRate, o.cfg.Channels)
	if err != nil {
		return err
	}
	c.SetAmplification(gain)
	return run(cmd.Context(), o, c, "Fiddletone - Violin Practice Tuner", cmd.OutOrStdout())
}

func printNotes(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "%-7s%-6s%10s\n", "STRING", "MIDI", "HZ"); err != nil {
		return err
	}
	for _, t := range pitch.OpenStrings {
		n, err := pitch.ParseNote(t.Name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%-7s%-6d%10.2f\n", t.Name, n, t.Frequency); err != nil {
			return err
		}
	}
	return nil
}
