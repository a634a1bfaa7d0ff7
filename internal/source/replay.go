package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TraceStep is one keystroke of a recorded trace: the decoded rune and
// the delay since the previous keystroke.
type TraceStep struct {
	Rune  rune
	Delay time.Duration
}

// ParseTrace reads a trace in the burstgen line format: one step per
// line, "<delay_ms> <char>", with '#' comments and blank lines skipped.
func ParseTrace(r io.Reader) ([]TraceStep, error) {
	var steps []TraceStep
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("trace line %d: want \"<delay_ms> <char>\", got %q", lineNo, line)
		}
		ms, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("trace line %d: bad delay: %w", lineNo, err)
		}
		// A literal space cannot survive strings.Fields, so traces
		// spell it out.
		if fields[1] == "space" {
			fields[1] = " "
		}
		runes := []rune(fields[1])
		if len(runes) != 1 {
			return nil, fmt.Errorf("trace line %d: want a single character, got %q", lineNo, fields[1])
		}
		steps = append(steps, TraceStep{Rune: runes[0], Delay: time.Duration(ms) * time.Millisecond})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return steps, nil
}

// Replay feeds a recorded trace as keystroke events. Timestamps are
// synthesized from the recorded delays; in realtime mode the source also
// sleeps between steps so the flush timer behaves as it would live.
type Replay struct {
	base
	steps    []TraceStep
	realtime bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReplay creates a replay source for the given trace.
func NewReplay(steps []TraceStep, realtime bool) *Replay {
	return &Replay{steps: steps, realtime: realtime}
}

// Start begins replaying the trace. The event channel is closed when the
// trace is exhausted or the context is cancelled.
func (r *Replay) Start(ctx context.Context) error {
	if err := r.start(); err != nil {
		return err
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go r.run(ctx)
	return nil
}

func (r *Replay) run(ctx context.Context) {
	defer r.wg.Done()
	defer func() {
		r.stop()
		r.closeChan()
	}()

	ch := r.channel()
	at := time.Now()
	for _, step := range r.steps {
		at = at.Add(step.Delay)
		if r.realtime && step.Delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(step.Delay):
			}
		}
		select {
		case ch <- Event{Rune: step.Rune, At: at}:
		case <-ctx.Done():
			return
		}
	}
}

// Stop cancels the replay and waits for the run loop to exit.
func (r *Replay) Stop() error {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	return nil
}

// Available always reports true.
func (r *Replay) Available() (bool, string) {
	return true, fmt.Sprintf("replay source (%d steps)", len(r.steps))
}
