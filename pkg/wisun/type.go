package wisun

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
)

const (
	ProbeTimeout           = 2 * time.Second
	JoinTimeout            = 60 * time.Second
	DefaultExchangeTimeout = 10 * time.Second

	MaxScanAttempts = 5

	DefaultChannelMask  = "FFFFFFFF"
	DefaultScanDuration = 6

	// ECHONET Lite UDP port, 3610.
	echonetPort = "0E1A"

	// Quiet period that ends discarding stale lines before a send.
	staleLineWait = 20 * time.Millisecond
)

// Module events used by the join sequence.
const (
	EventScanDone    = "EVENT 22"
	EventJoinFailed  = "EVENT 24"
	EventJoinSuccess = "EVENT 25"
)

var (
	ErrInvalidState            = errors.New("invalid controller state")
	ErrProbeFailed             = errors.New("probe failed")
	ErrConfigRejected          = errors.New("configuration rejected")
	ErrNoPanFound              = errors.New("no PAN found")
	ErrAddressResolutionFailed = errors.New("address resolution failed")
	ErrJoinRejected            = errors.New("join rejected")
)

// Session is the line protocol the controller drives.
type Session interface {
	SetTimeout(d time.Duration)
	SendCommand(command string) error
	ReadLine() (port_reader.Line, error)
	CollectUntilTerminator(success, failure string) ([]port_reader.Line, error)
	CollectUntilEvent(name string) (port_reader.Line, error)
	Drain(quiet time.Duration) int
}

// SessionConfig holds per-run parameters, validated by the config loader.
type SessionConfig struct {
	Device          string
	Baudrate        uint
	RouteBID        string
	RouteBPassword  string
	PollInterval    time.Duration
	ChannelMask     string
	ScanDuration    int
	ExchangeTimeout time.Duration
}

type State int

const (
	StateFresh State = iota
	StateProbeOk
	StateConfigured
	StateScanned
	StateRegistersApplied
	StateResolved
	StateJoined
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateProbeOk:
		return "probe ok"
	case StateConfigured:
		return "configured"
	case StateScanned:
		return "scanned"
	case StateRegistersApplied:
		return "registers applied"
	case StateResolved:
		return "resolved"
	case StateJoined:
		return "joined"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// PanInfo is the PAN description reported by a scan.
type PanInfo struct {
	Channel     string
	ChannelPage string
	PanID       string
	Addr        string
	LQI         string
	PairID      string
}

func (p PanInfo) Found() bool {
	return p.Channel != ""
}

// parsePanInfo reads the "key:value" lines of an EPANDESC block.
// Lines with more or less than one colon are ignored.
func parsePanInfo(lines []port_reader.Line) PanInfo {
	var info PanInfo
	for _, line := range lines {
		if strings.Count(string(line), ":") != 1 {
			continue
		}
		key, value, _ := strings.Cut(string(line), ":")
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Channel":
			info.Channel = value
		case "Channel Page":
			info.ChannelPage = value
		case "Pan ID":
			info.PanID = value
		case "Addr":
			info.Addr = value
		case "LQI":
			info.LQI = value
		case "PairID":
			info.PairID = value
		}
	}
	return info
}

// StepError names the join sequence step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
