package burst

import (
	"math"
	"time"
)

// Validate decides whether a buffered burst is consistent with automated
// input. On acceptance it returns the decoded string: the concatenation
// of the accepted keystrokes in arrival order.
//
// The walk maintains a running average of the inter-key delays seen so
// far, the current delay included. Two distinct failure modes exist and
// their asymmetry is deliberate:
//
//   - A delay above WaitTolerance means the burst ended naturally; the
//     prefix accepted so far is still evaluated against MinScanLength.
//   - A delay straying more than VariationTolerance from the running
//     average means the timing is irregular, which no scanner produces;
//     the entire buffer is rejected, not just the tail.
func Validate(buf []Keystroke, s Settings) (string, bool) {
	if len(buf) == 0 {
		return "", false
	}

	accepted := make([]rune, 1, len(buf))
	accepted[0] = buf[0].Rune

	var sum time.Duration
	var n int

	for i := 1; i < len(buf); i++ {
		delay := buf[i].At.Sub(buf[i-1].At)
		if delay > s.WaitTolerance {
			break
		}

		sum += delay
		n++
		avg := time.Duration(math.Round(float64(sum) / float64(n)))
		if absDuration(avg-delay) > s.VariationTolerance {
			return "", false
		}

		accepted = append(accepted, buf[i].Rune)
	}

	if len(accepted) <= MinScanLength {
		return "", false
	}
	return string(accepted), true
}

// MeanDelay returns the average inter-key delay across the keystrokes,
// zero when there are fewer than two.
func MeanDelay(buf []Keystroke) time.Duration {
	if len(buf) < 2 {
		return 0
	}
	return buf[len(buf)-1].At.Sub(buf[0].At) / time.Duration(len(buf)-1)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
