// Package sandbox documents the resource-limit contract of the optional
// sandboxed evaluator described in §5 and §9: a source-length cap, a
// cycle cap tighter than the simulator's own default, and the "prepend
// .ORG 0" convention that shifts reported line numbers by one. The HTTP
// front-end itself is out of scope (§1); this package carries only the
// contract a caller embedding the assembler and simulator as a sandbox
// must honor, along with the two small helpers that enforce it.
package sandbox

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxSourceChars is the largest source text a sandboxed run accepts.
const MaxSourceChars = 4096

// MaxSandboxCycles is the cycle cap a sandboxed run enforces, tighter than
// isa.DefaultMaxCycles.
const MaxSandboxCycles = 10000

// ErrSourceTooLong is returned by PrepareSource when code exceeds
// MaxSourceChars.
type ErrSourceTooLong struct {
	Len int
}

func (e *ErrSourceTooLong) Error() string {
	return fmt.Sprintf("source code exceeds %d character limit", MaxSourceChars)
}

// PrepareSource enforces the length cap and prepends ".ORG 0" so that
// sandboxed code always assembles starting at address 0, regardless of
// where the caller's snippet begins.
func PrepareSource(code string) (string, error) {
	if len(code) > MaxSourceChars {
		return "", &ErrSourceTooLong{Len: len(code)}
	}
	return ".ORG 0\n" + code, nil
}

// AdjustLine shifts a leading "Line N: ..." diagnostic down by one, to
// undo the line-number offset PrepareSource's prepended directive
// introduces. Messages not starting with "Line " are returned unchanged.
func AdjustLine(msg string) string {
	const prefix = "Line "
	if !strings.HasPrefix(msg, prefix) {
		return msg
	}
	rest := msg[len(prefix):]
	numStr, tail, found := strings.Cut(rest, ":")
	if !found {
		return msg
	}
	n, err := strconv.Atoi(numStr)
	if err != nil {
		return msg
	}
	n--
	if n < 1 {
		n = 1
	}
	return fmt.Sprintf("Line %d:%s", n, tail)
}
