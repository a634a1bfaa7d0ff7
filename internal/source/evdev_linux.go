//go:build linux

package source

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Evdev reads key events from a Linux /dev/input/event* device. A
// keyboard-wedge scanner registers as an ordinary keyboard, so the same
// reader covers both the scanner and the physical keyboard it has to be
// told apart from.
//
// Only key-press events with a decodable US-layout code point are
// delivered; modifier and release events update shift state but emit
// nothing. Requires membership in the 'input' group or root.
type Evdev struct {
	base
	device string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEvdev creates a source for the given device path. An empty path
// means the first readable keyboard device found.
func NewEvdev(device string) *Evdev {
	return &Evdev{device: device}
}

// Available checks whether a keyboard device can be opened.
func (e *Evdev) Available() (bool, string) {
	dev, err := e.resolveDevice()
	if err != nil {
		return false, err.Error()
	}
	fd, err := unix.Open(dev, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return false, fmt.Sprintf("cannot open %s: %v (need 'input' group or root)", dev, err)
	}
	unix.Close(fd)
	return true, fmt.Sprintf("keyboard device: %s", dev)
}

// Start opens the device and begins the read loop.
func (e *Evdev) Start(ctx context.Context) error {
	dev, err := e.resolveDevice()
	if err != nil {
		return err
	}
	fd, err := unix.Open(dev, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", dev, err)
	}
	if err := e.start(); err != nil {
		unix.Close(fd)
		return err
	}

	ctx, e.cancel = context.WithCancel(ctx)
	e.wg.Add(1)
	go e.readLoop(ctx, fd)
	return nil
}

// Stop cancels the read loop and closes the event channel.
func (e *Evdev) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	return nil
}

func (e *Evdev) resolveDevice() (string, error) {
	if e.device != "" {
		return e.device, nil
	}
	devices, err := findKeyboardDevices()
	if err != nil {
		return "", fmt.Errorf("enumerate input devices: %w", err)
	}
	for _, dev := range devices {
		if fd, err := unix.Open(dev, unix.O_RDONLY|unix.O_NONBLOCK, 0); err == nil {
			unix.Close(fd)
			return dev, nil
		}
	}
	return "", ErrNotAvailable
}

// findKeyboardDevices locates event handlers with key capabilities by
// walking /proc/bus/input/devices.
func findKeyboardDevices() ([]string, error) {
	f, err := os.Open("/proc/bus/input/devices")
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var devices []string
	var handler string
	isKeyboard := false

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if strings.HasPrefix(line, "H: Handlers=") {
			for _, part := range strings.Fields(line) {
				if strings.HasPrefix(part, "event") {
					handler = "/dev/input/" + part
				}
			}
		}
		if strings.HasPrefix(line, "B: KEY=") && len(line) > 10 {
			isKeyboard = true
		}
		if line == "" {
			if isKeyboard && handler != "" {
				devices = append(devices, handler)
			}
			handler = ""
			isKeyboard = false
		}
	}

	matches, _ := filepath.Glob("/dev/input/by-id/*-kbd")
	devices = append(devices, matches...)
	return devices, sc.Err()
}

// inputEventSize matches struct input_event on 64-bit Linux:
// two 8-byte time fields, type, code, value.
const inputEventSize = 24

const (
	evKey    = 0x01
	keyPress = 1

	keyLeftShift  = 42
	keyRightShift = 54
)

func (e *Evdev) readLoop(ctx context.Context, fd int) {
	defer e.wg.Done()
	defer func() {
		unix.Close(fd)
		e.stop()
		e.closeChan()
	}()

	buf := make([]byte, inputEventSize*64)
	shifted := false

	for ctx.Err() == nil {
		// Poll with a timeout so cancellation is observed even when the
		// device is silent.
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		n, err := unix.Poll(fds, 250)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if n == 0 {
			continue
		}

		n, err = unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}

		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			sec := int64(binary.LittleEndian.Uint64(buf[off : off+8]))
			usec := int64(binary.LittleEndian.Uint64(buf[off+8 : off+16]))
			typ := binary.LittleEndian.Uint16(buf[off+16 : off+18])
			code := binary.LittleEndian.Uint16(buf[off+18 : off+20])
			value := int32(binary.LittleEndian.Uint32(buf[off+20 : off+24]))

			if typ != evKey {
				continue
			}
			if code == keyLeftShift || code == keyRightShift {
				shifted = value != 0
				continue
			}
			if value != keyPress {
				continue
			}
			r, ok := decodeKey(code, shifted)
			if !ok {
				continue
			}
			e.emit(Event{Rune: r, At: time.Unix(sec, usec*1000)})
		}
	}
}

// decodeKey maps a Linux key code to a code point under a US layout.
// Wedge scanners emit digits, letters and a handful of symbols; anything
// else is not part of a barcode payload.
func decodeKey(code uint16, shifted bool) (rune, bool) {
	var table map[uint16]rune
	if shifted {
		table = keymapShift
	} else {
		table = keymapPlain
	}
	r, ok := table[code]
	return r, ok
}

var keymapPlain = map[uint16]rune{
	2: '1', 3: '2', 4: '3', 5: '4', 6: '5',
	7: '6', 8: '7', 9: '8', 10: '9', 11: '0',
	12: '-', 13: '=',
	16: 'q', 17: 'w', 18: 'e', 19: 'r', 20: 't',
	21: 'y', 22: 'u', 23: 'i', 24: 'o', 25: 'p',
	30: 'a', 31: 's', 32: 'd', 33: 'f', 34: 'g',
	35: 'h', 36: 'j', 37: 'k', 38: 'l',
	39: ';', 40: '\'',
	44: 'z', 45: 'x', 46: 'c', 47: 'v', 48: 'b',
	49: 'n', 50: 'm',
	51: ',', 52: '.', 53: '/',
	57: ' ',
}

var keymapShift = map[uint16]rune{
	2: '!', 3: '@', 4: '#', 5: '$', 6: '%',
	7: '^', 8: '&', 9: '*', 10: '(', 11: ')',
	12: '_', 13: '+',
	16: 'Q', 17: 'W', 18: 'E', 19: 'R', 20: 'T',
	21: 'Y', 22: 'U', 23: 'I', 24: 'O', 25: 'P',
	30: 'A', 31: 'S', 32: 'D', 33: 'F', 34: 'G',
	35: 'H', 36: 'J', 37: 'K', 38: 'L',
	39: ':', 40: '"',
	44: 'Z', 45: 'X', 46: 'C', 47: 'V', 48: 'B',
	49: 'N', 50: 'M',
	51: '<', 52: '>', 53: '?',
	57: ' ',
}
