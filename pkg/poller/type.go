package poller

import (
	"context"
	"errors"
	"time"

	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
)

const (
	DefaultInterval             = 10 * time.Second
	DefaultMaxConsecutiveErrors = 100
)

var (
	ErrErrorBudgetExhausted = errors.New("too many consecutive errors")
	// Response line was a datagram, but not the answer to our request.
	ErrNotCurrentPower = errors.New("datagram is not a current power response")
)

// Exchanger sends one request datagram and returns the inbound datagram event.
type Exchanger interface {
	Exchange(payload []byte) (port_reader.Line, error)
}

type Config struct {
	Interval             time.Duration
	MaxConsecutiveErrors int
}

// SleepFunc waits d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
