package port_reader

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/sirupsen/logrus"
)

// Open the serial port the radio module is attached to.
func Open(port string, baudrate uint, log logrus.FieldLogger) (*SerialSession, error) {
	options := serial.OpenOptions{
		PortName:        port,
		BaudRate:        baudrate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
	}

	stream, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrTransport, port, err)
	}

	log.WithField("port", port).Info("Connected to serial port")
	return NewSession(stream, log), nil
}

// NewSession wraps any duplex stream. Lines are read in the background
// and handed over one at a time when ReadLine is called.
func NewSession(port io.ReadWriteCloser, log logrus.FieldLogger) *SerialSession {
	s := &SerialSession{
		port:     port,
		lines:    make(chan lineResult, MaxLines),
		done:     make(chan struct{}),
		timeout:  DefaultTimeout,
		maxLines: MaxLines,
		log:      log,
	}
	go s.readLoop()
	return s
}

func (s *SerialSession) readLoop() {
	defer close(s.lines)

	scanner := bufio.NewScanner(s.port)
	for scanner.Scan() {
		if !s.deliver(lineResult{line: Line(strings.TrimSpace(scanner.Text()))}) {
			return
		}
	}
	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	s.deliver(lineResult{err: err})
}

func (s *SerialSession) deliver(res lineResult) bool {
	select {
	case s.lines <- res:
		return true
	case <-s.done:
		return false
	}
}

// SetTimeout applies to every following line read.
func (s *SerialSession) SetTimeout(d time.Duration) {
	s.timeout = d
	s.log.Debugf("set timeout=%v", d)
}

func (s *SerialSession) Timeout() time.Duration {
	return s.timeout
}

// SendCommand writes the command followed by CRLF. No response is consumed.
func (s *SerialSession) SendCommand(command string) error {
	s.lastCommand = commandName(command)
	s.log.WithField("command", printable(command)).Debug("send")

	if _, err := io.WriteString(s.port, command+CRLF); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrTransport, s.lastCommand, err)
	}
	return nil
}

// ReadLine returns the next line, empty lines included.
func (s *SerialSession) ReadLine() (Line, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res, ok := <-s.lines:
		if !ok {
			return "", fmt.Errorf("%w: stream closed", ErrTransport)
		}
		if res.err != nil {
			return "", fmt.Errorf("%w: read: %v", ErrTransport, res.err)
		}
		return res.line, nil
	case <-timer.C:
		return "", &CommandError{Command: s.lastCommand, Err: ErrTimeout}
	}
}

// CollectUntilTerminator gathers the response block of a command.
// Lines starting with success end the block, lines starting with failure fail it.
// A module FAIL line fails the block whatever the terminators are.
// Neither terminator line is part of the result.
func (s *SerialSession) CollectUntilTerminator(success, failure string) ([]Line, error) {
	var lines []Line
	for i := 0; i < s.maxLines; i++ {
		line, err := s.ReadLine()
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}

		switch {
		case strings.HasPrefix(string(line), success):
			s.log.WithField("line", line).Debug("terminator")
			return lines, nil
		case strings.HasPrefix(string(line), failure), line.Kind() == KindFailure:
			s.log.WithField("line", line).Error("device reported failure")
			return nil, &CommandError{Command: s.lastCommand, Line: line, Err: ErrDeviceReportedFailure}
		case line.Kind() == KindEvent:
			s.log.WithFields(logrus.Fields{"event": line.EventName(), "line": line}).Debug("recv")
			lines = append(lines, line)
		default:
			s.log.WithField("line", line).Debug("recv")
			lines = append(lines, line)
		}
	}
	return nil, &CommandError{Command: s.lastCommand, Err: ErrLineBudgetExceeded}
}

// CollectUntilEvent discards lines until the event called name arrives,
// eg. "ERXUDP" or "EVENT 25". A module FAIL line ends the wait.
func (s *SerialSession) CollectUntilEvent(name string) (Line, error) {
	for i := 0; i < s.maxLines; i++ {
		line, err := s.ReadLine()
		if err != nil {
			return "", err
		}

		switch line.Kind() {
		case KindEvent:
			if line.EventName() == name {
				s.log.WithField("line", line).Debug("event")
				return line, nil
			}
			s.log.WithField("event", line.EventName()).Debug("skip")
		case KindFailure:
			s.log.WithField("line", line).Error("device reported failure")
			return "", &CommandError{Command: s.lastCommand, Line: line, Err: ErrDeviceReportedFailure}
		default:
			if line != "" {
				s.log.WithField("line", line).Debug("skip")
			}
		}
	}
	return "", &CommandError{Command: s.lastCommand, Err: ErrLineBudgetExceeded}
}

// Drain discards lines that arrived unasked, such as a reply that came in
// after its read timed out. It stops once nothing arrives for quiet.
func (s *SerialSession) Drain(quiet time.Duration) int {
	previous := s.Timeout()
	s.SetTimeout(quiet)
	defer s.SetTimeout(previous)

	n := 0
	for i := 0; i < s.maxLines; i++ {
		line, err := s.ReadLine()
		if err != nil {
			break
		}
		if line != "" {
			s.log.WithField("line", line).Warn("discarding stale line")
			n++
		}
	}
	return n
}

// Close releases the port. Safe to call more than once.
func (s *SerialSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.closeErr = s.port.Close()
		s.log.Info("Disconnected from serial port")
	})
	return s.closeErr
}

func commandName(command string) string {
	name, _, _ := strings.Cut(command, " ")
	return name
}

// Datagram payloads are raw bytes, keep them out of the log as text.
func printable(command string) string {
	if strings.HasPrefix(command, "SKSETPWD ") {
		return "SKSETPWD ********"
	}
	for i := 0; i < len(command); i++ {
		if command[i] < 0x20 || command[i] > 0x7e {
			return fmt.Sprintf("%s<%d bytes>", command[:i], len(command)-i)
		}
	}
	return command
}
