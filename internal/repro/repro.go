// Package repro encodes event sequences as repro strings and parses them back.
//
// A repro string is the sequence's event names joined with Delimiter:
//
//	B1|A1|A2|B2|A3|B3
//
// The scheduler logs the repro string of the running iteration after every
// registered event, so the last "Repro sequence:" line before a test failure
// is the exact input for a deterministic replay.
package repro

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Delimiter separates event names in a repro string.
const Delimiter = "|"

// Log line prefixes shared by the scheduler and tools that scan its logs.
const (
	IssuedPrefix      = "Event issued by the app: "
	RegisteringPrefix = "Actually registering event: "
	SequencePrefix    = "Repro sequence: "
)

// ErrInvalidName is returned by ValidateName and Parse.
var ErrInvalidName = errors.New("invalid event name")

// Encode joins events into a repro string.
func Encode(events []string) string {
	return strings.Join(events, Delimiter)
}

// Decode splits a repro string into events. The empty string decodes to an
// empty sequence.
func Decode(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, Delimiter)
}

// Parse decodes s and validates every event name.
func Parse(s string) ([]string, error) {
	events := Decode(s)
	for i, name := range events {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
	}
	return events, nil
}

// ValidateName rejects names that cannot round-trip through a repro string
// copied out of a log: empty names, names containing the delimiter or a line
// break, and names not in Unicode NFC.
func ValidateName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.Contains(name, Delimiter):
		return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, Delimiter)
	case strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("%w: %q contains a line break", ErrInvalidName, name)
	case !norm.NFC.IsNormalString(name):
		return fmt.Errorf("%w: %q is not NFC-normalized (want %q)", ErrInvalidName, name, norm.NFC.String(name))
	}
	return nil
}

// HasPrefix reports whether seq starts with prefix.
func HasPrefix(seq, prefix []string) bool {
	if len(prefix) > len(seq) {
		return false
	}
	for i := range prefix {
		if seq[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Builder accumulates a repro string one event at a time.
// The zero value is an empty sequence. Not safe for concurrent use.
type Builder struct {
	sb     strings.Builder
	events []string
}

// Append adds an event to the end of the sequence.
func (b *Builder) Append(event string) {
	if len(b.events) > 0 {
		b.sb.WriteString(Delimiter)
	}
	b.sb.WriteString(event)
	b.events = append(b.events, event)
}

// String returns the encoded sequence so far.
func (b *Builder) String() string {
	return b.sb.String()
}

// Events returns a copy of the events appended so far.
func (b *Builder) Events() []string {
	return append([]string{}, b.events...)
}

// Len returns the number of events appended.
func (b *Builder) Len() int {
	return len(b.events)
}

// Last returns the most recently appended event.
func (b *Builder) Last() (string, bool) {
	if len(b.events) == 0 {
		return "", false
	}
	return b.events[len(b.events)-1], true
}

// Reset empties the builder.
func (b *Builder) Reset() {
	b.sb.Reset()
	b.events = nil
}
