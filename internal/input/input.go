// Package input acquires the payload from a command-line argument or a
// piped standard input.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/docker/go-units"
	"golang.org/x/term"
)

var (
	ErrEmptyPayload    = errors.New("empty payload: pass it as an argument or pipe it on stdin")
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Source describes where a payload may come from.
type Source struct {
	Args  []string
	Stdin io.Reader
	// Piped reports whether Stdin carries data rather than a terminal.
	Piped bool
	// Max caps the payload size in bytes; zero means unlimited.
	Max int64
}

// StdinPiped reports whether f is something other than a terminal.
func StdinPiped(f *os.File) bool {
	return !term.IsTerminal(int(f.Fd()))
}

// Read returns the payload. An argument wins over stdin; stdin is only read
// when piped, and loses one trailing newline.
func (s Source) Read() ([]byte, error) {
	var payload []byte
	switch {
	case len(s.Args) > 0:
		payload = []byte(s.Args[0])
	case s.Piped && s.Stdin != nil:
		r := s.Stdin
		if s.Max > 0 {
			// a full payload plus its newline, and one more byte to
			// detect overflow after the newline is trimmed
			r = io.LimitReader(r, s.Max+2)
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		payload = bytes.TrimSuffix(b, []byte("\n"))
	}
	if s.Max > 0 && int64(len(payload)) > s.Max {
		return nil, fmt.Errorf("%w: limit %s", ErrPayloadTooLarge, units.BytesSize(float64(s.Max)))
	}
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	return payload, nil
}
