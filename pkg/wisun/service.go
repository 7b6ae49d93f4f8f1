package wisun

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/NotCoffee418/broute_smart_meter/pkg/port_reader"
	"github.com/sirupsen/logrus"
)

// Controller drives the radio module from power-on to a joined PAN
// and exchanges datagrams with the meter afterwards.
type Controller struct {
	session  Session
	cfg      SessionConfig
	resolver AddressResolver
	log      logrus.FieldLogger

	state   State
	version string
	panInfo PanInfo
	peer    string
}

func NewController(session Session, cfg SessionConfig, resolver AddressResolver, log logrus.FieldLogger) *Controller {
	if resolver == nil {
		resolver = ModuleResolver{}
	}
	if cfg.ChannelMask == "" {
		cfg.ChannelMask = DefaultChannelMask
	}
	if cfg.ScanDuration == 0 {
		cfg.ScanDuration = DefaultScanDuration
	}
	if cfg.ExchangeTimeout == 0 {
		cfg.ExchangeTimeout = DefaultExchangeTimeout
	}
	return &Controller{
		session:  session,
		cfg:      cfg,
		resolver: resolver,
		log:      log,
	}
}

func (c *Controller) State() State        { return c.state }
func (c *Controller) Version() string     { return c.version }
func (c *Controller) PanInfo() PanInfo    { return c.panInfo }
func (c *Controller) PeerAddress() string { return c.peer }

// Connect runs the whole join sequence. The first failing step ends it,
// nothing is retried here apart from the scan.
func (c *Controller) Connect() error {
	version, err := c.Probe()
	if err != nil {
		return err
	}
	c.log.Infof("SKVER: %s", version)

	if err := c.Configure(); err != nil {
		return err
	}
	if _, err := c.Scan(); err != nil {
		return err
	}
	if err := c.ApplyRegisters(); err != nil {
		return err
	}
	if err := c.ResolveAddress(); err != nil {
		return err
	}
	return c.Join()
}

func (c *Controller) Probe() (string, error) {
	const step = "probe"
	if err := c.expect(step, StateFresh); err != nil {
		return "", err
	}

	c.session.SetTimeout(ProbeTimeout)
	lines, err := c.command("SKVER")
	if err != nil {
		return "", c.fail(step, ErrProbeFailed, err)
	}

	for _, line := range lines {
		if v, ok := strings.CutPrefix(string(line), "EVER "); ok {
			c.version = strings.TrimSpace(v)
		}
	}
	if c.version == "" {
		return "", c.fail(step, ErrProbeFailed, errors.New("no version in SKVER response"))
	}

	c.state = StateProbeOk
	return c.version, nil
}

// Configure sets the route-B password and id.
func (c *Controller) Configure() error {
	const step = "configure"
	if err := c.expect(step, StateProbeOk); err != nil {
		return err
	}

	c.session.SetTimeout(JoinTimeout)
	if _, err := c.command("SKSETPWD C " + c.cfg.RouteBPassword); err != nil {
		return c.fail(step, ErrConfigRejected, err)
	}
	if _, err := c.command("SKSETRBID " + c.cfg.RouteBID); err != nil {
		return c.fail(step, ErrConfigRejected, err)
	}

	c.state = StateConfigured
	return nil
}

// Scan runs an active scan until a PAN reports its channel.
// A weak link often needs several scans, the scan duration is the only throttle.
func (c *Controller) Scan() (PanInfo, error) {
	const step = "scan"
	if err := c.expect(step, StateConfigured); err != nil {
		return PanInfo{}, err
	}

	c.session.SetTimeout(JoinTimeout)
	for attempt := 1; attempt <= MaxScanAttempts; attempt++ {
		info, err := c.scanOnce()
		if err != nil {
			return PanInfo{}, &StepError{Step: step, Err: err}
		}
		c.panInfo = info
		if info.Found() {
			c.state = StateScanned
			return info, nil
		}
		c.log.Warnf("No PAN in scan result (%d/%d)", attempt, MaxScanAttempts)
	}

	c.log.Error("Cannot get pan_info")
	return PanInfo{}, &StepError{Step: step, Err: ErrNoPanFound}
}

func (c *Controller) scanOnce() (PanInfo, error) {
	cmd := fmt.Sprintf("SKSCAN 2 %s %d 0", c.cfg.ChannelMask, c.cfg.ScanDuration)
	if _, err := c.command(cmd); err != nil {
		return PanInfo{}, err
	}
	lines, err := c.session.CollectUntilTerminator(EventScanDone, port_reader.FailureWord)
	if err != nil {
		return PanInfo{}, err
	}
	return parsePanInfo(lines), nil
}

// ApplyRegisters writes the scanned channel (S2) and PAN id (S3).
func (c *Controller) ApplyRegisters() error {
	const step = "apply registers"
	if err := c.expect(step, StateScanned); err != nil {
		return err
	}

	c.session.SetTimeout(JoinTimeout)
	if _, err := c.command("SKSREG S2 " + c.panInfo.Channel); err != nil {
		return c.fail(step, ErrConfigRejected, err)
	}
	if _, err := c.command("SKSREG S3 " + c.panInfo.PanID); err != nil {
		return c.fail(step, ErrConfigRejected, err)
	}

	c.state = StateRegistersApplied
	return nil
}

func (c *Controller) ResolveAddress() error {
	const step = "resolve address"
	if err := c.expect(step, StateRegistersApplied); err != nil {
		return err
	}

	c.session.SetTimeout(JoinTimeout)
	addr, err := c.resolver.Resolve(c.session, c.panInfo.Addr)
	if err != nil {
		return c.fail(step, ErrAddressResolutionFailed, err)
	}
	parsed, err := netip.ParseAddr(addr)
	if err != nil || !parsed.Is6() {
		return c.fail(step, ErrAddressResolutionFailed, fmt.Errorf("not an IPv6 address: %q", addr))
	}

	c.peer = addr
	c.state = StateResolved
	c.log.Infof("Connect to { Channel: %s, Pan ID: %s, IPv6Addr: %s }", c.panInfo.Channel, c.panInfo.PanID, c.peer)
	return nil
}

// Join starts PANA authentication and waits for its outcome.
func (c *Controller) Join() error {
	const step = "join"
	if err := c.expect(step, StateResolved); err != nil {
		return err
	}

	c.session.SetTimeout(JoinTimeout)
	if _, err := c.command("SKJOIN " + c.peer); err != nil {
		return &StepError{Step: step, Err: err}
	}
	if _, err := c.session.CollectUntilTerminator(EventJoinSuccess, EventJoinFailed); err != nil {
		if errors.Is(err, port_reader.ErrDeviceReportedFailure) {
			return c.fail(step, ErrJoinRejected, err)
		}
		return &StepError{Step: step, Err: err}
	}

	c.state = StateJoined
	c.log.Info("PANA authentication completed")
	return nil
}

// Exchange sends one UDP datagram to the meter and returns the next
// inbound datagram event. Failures are reported, never retried here.
func (c *Controller) Exchange(payload []byte) (port_reader.Line, error) {
	const step = "exchange"
	if err := c.expect(step, StateJoined); err != nil {
		return "", err
	}

	// A reply that missed the previous exchange's timeout must not be
	// taken for the answer to this request.
	c.session.Drain(staleLineWait)

	c.session.SetTimeout(c.cfg.ExchangeTimeout)
	cmd := fmt.Sprintf("SKSENDTO 1 %s %s 1 0 %04X ", c.peer, echonetPort, len(payload))
	if err := c.session.SendCommand(cmd + string(payload)); err != nil {
		return "", &StepError{Step: step, Err: err}
	}

	line, err := c.session.CollectUntilEvent("ERXUDP")
	if err != nil {
		return "", &StepError{Step: step, Err: err}
	}
	return line, nil
}

func (c *Controller) command(cmd string) ([]port_reader.Line, error) {
	if err := c.session.SendCommand(cmd); err != nil {
		return nil, err
	}
	return c.session.CollectUntilTerminator(port_reader.SuccessWord, port_reader.FailureWord)
}

func (c *Controller) expect(step string, want State) error {
	if c.state != want {
		return &StepError{Step: step, Err: fmt.Errorf("%w: %s, want %s", ErrInvalidState, c.state, want)}
	}
	return nil
}

func (c *Controller) fail(step string, kind, cause error) error {
	return &StepError{Step: step, Err: fmt.Errorf("%w: %w", kind, cause)}
}
