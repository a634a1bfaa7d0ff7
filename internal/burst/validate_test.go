package burst

import (
	"testing"
	"time"
)

// Fixed base time for deterministic tests.
var testBase = time.Unix(1700000000, 0)

// at returns a timestamp offset from the base in milliseconds.
func at(ms int64) time.Time {
	return testBase.Add(time.Duration(ms) * time.Millisecond)
}

// keys builds a buffer from characters and millisecond offsets.
func keys(chars string, offsets ...int64) []Keystroke {
	runes := []rune(chars)
	if len(runes) != len(offsets) {
		panic("keys: chars and offsets length mismatch")
	}
	buf := make([]Keystroke, len(runes))
	for i, r := range runes {
		buf[i] = Keystroke{Rune: r, At: at(offsets[i])}
	}
	return buf
}

var testSettings = Settings{
	WaitTolerance:      20 * time.Millisecond,
	VariationTolerance: 3 * time.Millisecond,
}

func TestValidateUniformBurst(t *testing.T) {
	code, ok := Validate(keys("1234", 0, 5, 10, 15), testSettings)
	if !ok {
		t.Fatal("uniform 4-key burst should validate")
	}
	if code != "1234" {
		t.Errorf("decoded %q, want %q", code, "1234")
	}
}

func TestValidateEmptyBuffer(t *testing.T) {
	if code, ok := Validate(nil, testSettings); ok {
		t.Errorf("empty buffer validated as %q", code)
	}
}

func TestValidateShortBurst(t *testing.T) {
	// Perfect timing, but 2 keystrokes never pass the length threshold.
	if _, ok := Validate(keys("ab", 0, 5), testSettings); ok {
		t.Error("2-key burst should be rejected")
	}
}

func TestValidateLengthThreshold(t *testing.T) {
	// Bursts of MinScanLength or fewer are rejected regardless of timing;
	// one more keystroke flips the decision.
	offsets := []int64{0, 5, 10, 15, 20, 25}
	for n := 1; n <= len(offsets); n++ {
		buf := keys("123456"[:n], offsets[:n]...)
		_, ok := Validate(buf, testSettings)
		want := n > MinScanLength
		if ok != want {
			t.Errorf("length %d: validated=%v, want %v", n, ok, want)
		}
	}
}

func TestValidateWaitToleranceStopsAtPrefix(t *testing.T) {
	// Third delay is 35ms > 20ms: the burst ends there and the accepted
	// prefix "12" fails the length rule.
	if code, ok := Validate(keys("1234", 0, 5, 40, 45), testSettings); ok {
		t.Errorf("short prefix validated as %q", code)
	}
}

func TestValidateWaitToleranceLongPrefix(t *testing.T) {
	// A long consistent prefix followed by an idle gap still validates,
	// decoding only the prefix.
	buf := keys("123456", 0, 5, 10, 15, 20, 200)
	code, ok := Validate(buf, testSettings)
	if !ok {
		t.Fatal("prefix of 5 keystrokes should validate")
	}
	if code != "12345" {
		t.Errorf("decoded %q, want %q", code, "12345")
	}
}

func TestValidateVariationRejectsWholeBuffer(t *testing.T) {
	// Delays 5, 1, 44: the first two pass, then 44ms against a running
	// average of ~17ms exceeds the variation tolerance. The failure mode
	// is full rejection, not the prefix that was fine so far.
	if code, ok := Validate(keys("1234", 0, 5, 6, 50), testSettings); ok {
		t.Errorf("irregular burst validated as %q", code)
	}
}

func TestValidateVariationRejectsLongAcceptedPrefix(t *testing.T) {
	// Eight perfectly spaced keystrokes followed by one irregular delay
	// inside the wait tolerance: even though the prefix alone would have
	// passed, a variation failure rejects everything.
	buf := keys("123456789", 0, 5, 10, 15, 20, 25, 30, 35, 50)
	if code, ok := Validate(buf, testSettings); ok {
		t.Errorf("burst with mid-stream variation failure validated as %q", code)
	}
}

func TestValidateRunningAverageIncludesCurrentDelay(t *testing.T) {
	// Delays 5, 1: average after the second delay is (5+1)/2 = 3ms and
	// |3-1| = 2ms passes. Averaging before adding the current delay would
	// give |5-1| = 4ms and wrongly reject.
	buf := keys("abcd", 0, 5, 6, 11)
	if _, ok := Validate(buf, testSettings); !ok {
		t.Error("burst within running-average tolerance should validate")
	}
}

func TestValidateSingleKeystroke(t *testing.T) {
	if _, ok := Validate(keys("a", 0), testSettings); ok {
		t.Error("single keystroke should be rejected")
	}
}

func TestValidateNegativeToleranceRejectsEverything(t *testing.T) {
	// Negative tolerances are accepted as-is and reject any multi-key burst.
	s := Settings{WaitTolerance: -time.Millisecond, VariationTolerance: -time.Millisecond}
	if _, ok := Validate(keys("1234", 0, 5, 10, 15), s); ok {
		t.Error("negative wait tolerance should reject the burst")
	}
}

func TestValidateOpaqueCharacters(t *testing.T) {
	// Any code point is accepted as data, including non-ASCII.
	code, ok := Validate(keys("äöü*", 0, 5, 10, 15), testSettings)
	if !ok {
		t.Fatal("non-ASCII burst should validate")
	}
	if code != "äöü*" {
		t.Errorf("decoded %q, want %q", code, "äöü*")
	}
}

func TestMeanDelay(t *testing.T) {
	if got := MeanDelay(keys("1234", 0, 5, 10, 15)); got != 5*time.Millisecond {
		t.Errorf("uniform mean = %v, want 5ms", got)
	}
	// Uneven spacing averages over the span.
	if got := MeanDelay(keys("123", 0, 4, 12)); got != 6*time.Millisecond {
		t.Errorf("uneven mean = %v, want 6ms", got)
	}
	if got := MeanDelay(keys("1", 0)); got != 0 {
		t.Errorf("single keystroke mean = %v, want 0", got)
	}
	if got := MeanDelay(nil); got != 0 {
		t.Errorf("empty mean = %v, want 0", got)
	}
}
