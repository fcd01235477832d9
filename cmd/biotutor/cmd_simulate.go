package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alex/biotutor/internal/affect"
	"github.com/alex/biotutor/internal/engine"
)

var simulateFlags struct {
	mode string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive the state engine from the terminal",
	Long: `Runs the state engine in the terminal. Typed emotion words become detector
observations ("happy", "confused 60", "angry 80"); commands switch modes
and walk the scene script. Type 'help' for the full list.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().StringVar(&simulateFlags.mode, "mode", "", "override engine.mode (scripted, external, autonomous)")
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if simulateFlags.mode != "" {
		cfg.Engine.Mode = simulateFlags.mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	sim := &simulator{out: out}
	ctrl, err := newController(cfg, log, sim)
	if err != nil {
		return err
	}
	sim.ctrl = ctrl
	if ctrl.Mode() == engine.ModeScripted {
		if err := ctrl.ResetScenes(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Fprintln(out, "=== Bio-Adaptive Tutor Simulator ===")
	sim.printState()
	sim.printHelp()
	return sim.run(ctx, cmd.InOrStdin(), cfg.Engine.TickInterval)
}

// simulator is the terminal front end. All controller calls happen on the
// run loop's goroutine, so listener output never interleaves.
type simulator struct {
	engine.NopListener
	ctrl *engine.Controller
	out  io.Writer
}

// EmotionChanged prints every change the engine makes on its own.
func (s *simulator) EmotionChanged(ch engine.Change) {
	if ch.From == ch.To {
		fmt.Fprintf(s.out, "\n[%s] %s intensified to %.2f\n", ch.Cause, ch.To, ch.State.Intensity)
		return
	}
	fmt.Fprintf(s.out, "\n[%s] %s -> %s\n", ch.Cause, ch.From, ch.To)
}

func (s *simulator) run(ctx context.Context, in io.Reader, tick time.Duration) error {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	inputChan := make(chan string)
	go readInput(in, inputChan)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.ctrl.Tick()
		case line, ok := <-inputChan:
			if !ok {
				return nil
			}
			if !s.handle(line) {
				return nil
			}
		}
	}
}

// handle runs one input line and reports whether to keep going.
func (s *simulator) handle(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return true
	}

	switch fields[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(s.out, "Bye!")
		return false
	case "help", "?":
		s.printHelp()
	case "status", "s":
		s.printState()
	case "mode":
		s.setMode(fields[1:])
	case "next", "n":
		s.report(s.ctrl.AdvanceScene())
	case "reset":
		s.report(s.ctrl.ResetScenes())
	case "scene":
		s.startScene(fields[1:])
	case "snap":
		s.printSnapshot()
	case "drift", "d":
		if !s.ctrl.TriggerDrift() {
			fmt.Fprintln(s.out, "no drift (only in autonomous mode, and the draw may keep the current emotion)")
		}
	case "window", "w":
		s.printWindow()
	default:
		s.observe(fields)
	}
	return true
}

func (s *simulator) setMode(args []string) {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "usage: mode <%s>\n", joinModes())
		return
	}
	m, err := engine.ParseMode(args[0])
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if err := s.ctrl.SetMode(m); err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	fmt.Fprintf(s.out, "mode: %s\n", m)
}

func (s *simulator) startScene(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "usage: scene <number>")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "bad scene number %q\n", args[0])
		return
	}
	s.report(s.ctrl.StartScene(n - 1))
}

func (s *simulator) report(err error) {
	if err != nil {
		fmt.Fprintln(s.out, err)
		return
	}
	if sc, i, ok := s.ctrl.CurrentScene(); ok {
		fmt.Fprintf(s.out, "scene %d/%d: %s\n", i+1, len(s.ctrl.Scenes()), sc.Name)
		if sc.Agent != "" {
			fmt.Fprintf(s.out, "  tutor:   %s\n", sc.Agent)
		}
		if sc.User != "" {
			fmt.Fprintf(s.out, "  learner: %s\n", sc.User)
		}
	}
}

// observe treats the line as a detector observation: a label and an
// optional confidence percentage.
func (s *simulator) observe(fields []string) {
	label := fields[0]
	if !affect.Known(label) {
		fmt.Fprintf(s.out, "Unknown input: %s (type 'help' for options)\n", label)
		return
	}
	confidence := 90.0
	if len(fields) > 1 {
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			fmt.Fprintf(s.out, "bad confidence %q\n", fields[1])
			return
		}
		confidence = v
	}

	obs, kept := s.ctrl.ReportObservation(label, confidence, time.Time{})
	if !kept {
		fmt.Fprintf(s.out, "[observation] %s %.2f dropped (low-confidence neutral)\n", obs.Label, obs.Confidence)
		return
	}
	fmt.Fprintf(s.out, "[observation] %s %.2f\n", obs.Label, obs.Confidence)
	if s.ctrl.Mode() != engine.ModeExternal {
		fmt.Fprintln(s.out, "  (buffered; the display follows observations in external mode)")
	}
}

func (s *simulator) printState() {
	st := s.ctrl.State()
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  Emotion:    %s", st.Emotion)
	if st.RawEmotion != string(st.Emotion) {
		fmt.Fprintf(s.out, " (%s)", st.RawEmotion)
	}
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  Intensity:  %.2f\n", st.Intensity)
	fmt.Fprintf(s.out, "  Engagement: %.2f  Attention: %.2f  Load: %.2f\n",
		st.Engagement, st.Attention, st.CognitiveLoad)
	fmt.Fprintf(s.out, "  Waves:      alpha %.2f  beta %.2f  theta %.2f  delta %.2f\n",
		st.Waves.Alpha, st.Waves.Beta, st.Waves.Theta, st.Waves.Delta)
	fmt.Fprintf(s.out, "  Mode:       %s\n", st.Mode)
	if st.Scene >= 0 {
		fmt.Fprintf(s.out, "  Scene:      %d/%d (%s)\n", st.Scene+1, len(s.ctrl.Scenes()), st.ScenePhase)
	}
	fmt.Fprintln(s.out)
}

func (s *simulator) printSnapshot() {
	snap := s.ctrl.CaptureSnapshot()
	fmt.Fprintf(s.out, "  Snapshot %s\n", snap.ID)
	fmt.Fprintf(s.out, "  Window verdict: %s (%.2f confidence, %d samples)\n",
		snap.Emotion, snap.Confidence, snap.WindowAnalysis.Samples)
	for label, score := range snap.WindowAnalysis.Scores {
		fmt.Fprintf(s.out, "    %-10s %.3f\n", label, score)
	}
}

func (s *simulator) printWindow() {
	sum := s.ctrl.Summary()
	fmt.Fprintf(s.out, "  %d samples in the last %s, most frequent: %s\n", sum.Total, sum.Window, sum.Dominant)
	for label, f := range sum.Frequencies {
		fmt.Fprintf(s.out, "    %-10s %3.0f%%  avg %.2f\n", label, f*100, sum.AverageConfidences[label])
	}
}

func (s *simulator) printHelp() {
	fmt.Fprintln(s.out, "Observations:")
	fmt.Fprintln(s.out, "  happy, confused, frustrated, neutral  - core labels")
	fmt.Fprintln(s.out, "  angry, sad, fear, surprise, ...       - detector labels, mapped to core")
	fmt.Fprintln(s.out, "  <label> <confidence>                  - confidence in percent, e.g. 'angry 80'")
	fmt.Fprintln(s.out)
	fmt.Fprintln(s.out, "Commands:")
	fmt.Fprintf(s.out, "  mode <%s>\n", joinModes())
	fmt.Fprintln(s.out, "  next, n              - advance to the next scene")
	fmt.Fprintln(s.out, "  scene <n>            - jump to scene n")
	fmt.Fprintln(s.out, "  reset                - restart the scene script")
	fmt.Fprintln(s.out, "  drift, d             - force an autonomous drift")
	fmt.Fprintln(s.out, "  snap                 - score the observation window")
	fmt.Fprintln(s.out, "  window, w            - label frequencies in the window")
	fmt.Fprintln(s.out, "  status, s            - show current state")
	fmt.Fprintln(s.out, "  help, ?              - show this help")
	fmt.Fprintln(s.out, "  quit, exit, q        - exit")
	fmt.Fprintln(s.out)
}

func joinModes() string {
	names := make([]string, len(engine.Modes))
	for i, m := range engine.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, "|")
}

func readInput(in io.Reader, ch chan<- string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		ch <- scanner.Text()
	}
	close(ch)
}
