// Command burstgen generates keystroke trace files for the replay
// source.
//
// Scanner traces use a uniform inter-keystroke delay with a small
// bounded jitter; human traces use irregular delays drawn from a wide
// range. The output format is one step per line: "<delay_ms> <char>".
//
// Usage:
//
//	go build -o burstgen ./tools/burstgen
//	./burstgen -mode scanner -code 5901234123457 > scan.trace
//	./burstgen -mode human -code "hello world" > typing.trace
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
)

func main() {
	var (
		mode   = flag.String("mode", "scanner", "trace kind: scanner or human")
		code   = flag.String("code", "5901234123457", "characters to emit")
		delay  = flag.Int("delay", 5, "base inter-keystroke delay in ms (scanner mode)")
		jitter = flag.Int("jitter", 1, "max jitter in ms (scanner mode)")
		seed   = flag.Int64("seed", 0, "random seed (0 = nondeterministic)")
		out    = flag.String("o", "", "output file (default stdout)")
	)
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	if *seed == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	w := bufio.NewWriter(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "burstgen: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		w = bufio.NewWriter(f)
	}
	defer w.Flush()

	runes := []rune(*code)
	if len(runes) == 0 {
		fmt.Fprintln(os.Stderr, "burstgen: empty code")
		os.Exit(1)
	}

	switch *mode {
	case "scanner":
		writeScanner(w, runes, *delay, *jitter, rng)
	case "human":
		writeHuman(w, runes, rng)
	default:
		fmt.Fprintf(os.Stderr, "burstgen: unknown mode %q\n", *mode)
		os.Exit(1)
	}
}

func writeScanner(w *bufio.Writer, runes []rune, delay, jitter int, rng *rand.Rand) {
	fmt.Fprintf(w, "# scanner trace: %d keys, %dms base delay\n", len(runes), delay)
	for i, r := range runes {
		d := 0
		if i > 0 {
			d = delay
			if jitter > 0 {
				d += rng.Intn(jitter + 1)
			}
		}
		fmt.Fprintf(w, "%d %s\n", d, charToken(r))
	}
}

func writeHuman(w *bufio.Writer, runes []rune, rng *rand.Rand) {
	fmt.Fprintf(w, "# human trace: %d keys\n", len(runes))
	for i, r := range runes {
		d := 0
		if i > 0 {
			// Typical typing cadence: 60-300ms with occasional pauses.
			d = 60 + rng.Intn(240)
			if rng.Intn(10) == 0 {
				d += 300 + rng.Intn(700)
			}
		}
		fmt.Fprintf(w, "%d %s\n", d, charToken(r))
	}
}

// charToken renders a rune in the trace format, spelling out the space
// character that strings.Fields would otherwise eat.
func charToken(r rune) string {
	if r == ' ' {
		return "space"
	}
	return string(r)
}
