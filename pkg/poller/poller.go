package poller

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/NotCoffee418/broute_smart_meter/pkg/echonet"
	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
	"github.com/sirupsen/logrus"
)

// Poller produces current power readings one exchange at a time.
// Failures retry immediately, successful readings are spaced by the interval.
type Poller struct {
	exchanger Exchanger
	cfg       Config
	log       logrus.FieldLogger
	sleep     SleepFunc

	consecutiveErrors int
	lastErr           error
	// Set after a reading was handed out, the next call waits the interval first.
	delayPending bool
	err          error
}

func New(exchanger Exchanger, cfg Config, log logrus.FieldLogger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxConsecutiveErrors <= 0 {
		cfg.MaxConsecutiveErrors = DefaultMaxConsecutiveErrors
	}
	return &Poller{
		exchanger: exchanger,
		cfg:       cfg,
		log:       log,
		sleep:     sleepContext,
	}
}

// WithSleep replaces the interval wait, used by tests.
func (p *Poller) WithSleep(sleep SleepFunc) *Poller {
	p.sleep = sleep
	return p
}

func (p *Poller) ConsecutiveErrors() int {
	return p.consecutiveErrors
}

// Next blocks until the next valid reading.
// It returns ctx.Err() when cancelled between attempts, ErrErrorBudgetExhausted
// once too many attempts failed in a row, and transport errors as they come.
func (p *Poller) Next(ctx context.Context) (int32, error) {
	if p.delayPending {
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return 0, err
		}
		p.delayPending = false
	}

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		watt, err := p.pollOnce()
		if err == nil {
			p.consecutiveErrors = 0
			p.delayPending = true
			return watt, nil
		}

		if errors.Is(err, port_reader.ErrTransport) {
			return 0, err
		}

		p.consecutiveErrors++
		p.lastErr = err
		p.log.WithError(err).Errorf("Error reading current power (%d/%d)", p.consecutiveErrors, p.cfg.MaxConsecutiveErrors)
		if p.consecutiveErrors >= p.cfg.MaxConsecutiveErrors {
			return 0, fmt.Errorf("%w (%d): %w", ErrErrorBudgetExhausted, p.consecutiveErrors, p.lastErr)
		}
	}
}

func (p *Poller) pollOnce() (int32, error) {
	line, err := p.exchanger.Exchange(echonet.BuildCurrentPowerRequest())
	if err != nil {
		return 0, err
	}

	frame, err := echonet.ParseResponse(string(line))
	if err != nil {
		return 0, err
	}
	if !echonet.IsValidCurrentPowerResponse(frame) {
		return 0, fmt.Errorf("%w: esv %02X from %X", ErrNotCurrentPower, frame.ESV, frame.SEOJ[:])
	}
	return frame.CurrentPower(), nil
}

// Readings is the lazy sequence of readings. It ends on cancellation,
// a fatal error or an exhausted error budget; Err tells which.
func (p *Poller) Readings(ctx context.Context) iter.Seq[int32] {
	return func(yield func(int32) bool) {
		for {
			watt, err := p.Next(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					p.err = err
				}
				return
			}
			if !yield(watt) {
				return
			}
		}
	}
}

// Err returns the error that ended Readings, nil after a clean cancellation.
func (p *Poller) Err() error {
	return p.err
}
