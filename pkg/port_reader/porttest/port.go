// Package porttest provides a scripted duplex stream standing in for the
// radio module in tests.
package porttest

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// Port plays back scripted response lines and records every write.
// Once the script is exhausted reads block until Close or Hangup.
type Port struct {
	reader *io.PipeReader
	writer *io.PipeWriter

	// Feeds the pipe in order from a single goroutine.
	feed chan []byte
	quit chan struct{}
	once sync.Once

	mu      sync.Mutex
	written bytes.Buffer
	replies []reply
}

type reply struct {
	prefix string
	lines  []string
}

func New(lines ...string) *Port {
	pr, pw := io.Pipe()
	p := &Port{
		reader: pr,
		writer: pw,
		feed:   make(chan []byte, 16),
		quit:   make(chan struct{}),
	}
	go p.feedLoop()
	if len(lines) > 0 {
		p.feed <- joinLines(lines)
	}
	return p
}

// ReplyTo queues lines that are only sent once a command starting with
// prefix has been written. Replies are consumed in registration order.
func (p *Port) ReplyTo(prefix string, lines ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply{prefix: prefix, lines: lines})
}

func (p *Port) feedLoop() {
	for {
		select {
		case data := <-p.feed:
			if _, err := p.writer.Write(data); err != nil {
				return
			}
		case <-p.quit:
			return
		}
	}
}

func joinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\r\n") + "\r\n")
}

func (p *Port) Read(b []byte) (int, error) {
	return p.reader.Read(b)
}

func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.replies) > 0 && strings.HasPrefix(string(b), p.replies[0].prefix) {
		next := p.replies[0]
		p.replies = p.replies[1:]
		select {
		case p.feed <- joinLines(next.lines):
		case <-p.quit:
		}
	}
	return p.written.Write(b)
}

func (p *Port) Close() error {
	p.stop()
	p.writer.Close()
	return p.reader.Close()
}

// Hangup ends the stream as if the device went away.
func (p *Port) Hangup() {
	p.stop()
	p.writer.Close()
}

func (p *Port) stop() {
	p.once.Do(func() { close(p.quit) })
}

func (p *Port) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.String()
}

// Commands returns the written command lines in order.
func (p *Port) Commands() []string {
	var out []string
	for _, c := range strings.Split(p.Written(), "\r\n") {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
