package port_reader

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Line terminator of the SK command protocol.
	CRLF = "\r\n"

	SuccessWord = "OK"
	FailureWord = "FAIL"
	EventWord   = "EVENT"

	// Lines read per response block before giving up.
	MaxLines = 100

	DefaultTimeout = 60 * time.Second
)

var (
	// Open, read and write failures on the underlying stream.
	ErrTransport = errors.New("serial transport failure")

	ErrTimeout               = errors.New("read timed out")
	ErrLineBudgetExceeded    = errors.New("line budget exceeded")
	ErrDeviceReportedFailure = errors.New("device reported failure")
)

// LineKind classifies a line by its leading token.
type LineKind int

const (
	KindData LineKind = iota
	KindSuccess
	KindFailure
	KindEvent
)

func (k LineKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	case KindEvent:
		return "event"
	default:
		return "data"
	}
}

// Line is a single response line with the terminator stripped.
type Line string

func (l Line) Kind() LineKind {
	token, _, _ := strings.Cut(string(l), " ")
	switch {
	case token == SuccessWord:
		return KindSuccess
	case token == FailureWord:
		return KindFailure
	case token == EventWord || eventNames[token]:
		return KindEvent
	default:
		return KindData
	}
}

// Event name of an event line: "EVENT 22" or "ERXUDP". Empty for other kinds.
func (l Line) EventName() string {
	if l.Kind() != KindEvent {
		return ""
	}
	fields := strings.Fields(string(l))
	if fields[0] == EventWord && len(fields) > 1 {
		return fields[0] + " " + fields[1]
	}
	return fields[0]
}

// Asynchronous notifications the module emits besides "EVENT nn".
var eventNames = map[string]bool{
	"ERXUDP":    true,
	"ERXTCP":    true,
	"EPONG":     true,
	"EADDR":     true,
	"ENEIGHBOR": true,
	"EPANDESC":  true,
	"EEDSCAN":   true,
	"EPORT":     true,
	"EHANDLE":   true,
}

// CommandError carries the command and the line that ended it.
type CommandError struct {
	Command string
	Line    Line
	Err     error
}

func (e *CommandError) Error() string {
	if e.Line != "" {
		return fmt.Sprintf("%s: %v (line %q)", e.Command, e.Err, string(e.Line))
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type lineResult struct {
	line Line
	err  error
}

// SerialSession turns a duplex byte stream into a timeout bounded line protocol.
type SerialSession struct {
	port     io.ReadWriteCloser
	lines    chan lineResult
	timeout  time.Duration
	maxLines int
	log      logrus.FieldLogger

	// Last command written, used for error context.
	lastCommand string

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}
