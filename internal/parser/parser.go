// Package parser classifies the harness output stream into events.
package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
)

// ErrStream wraps read failures on the harness stream.
var ErrStream = errors.New("harness stream")

// Parser reads harness output line by line and dispatches events
// synchronously on its own goroutine.
type Parser struct {
	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector
}

// New creates a parser. Either argument may be nil.
func New(logger logging.ContextLogger, m *metrics.PrometheusCollector) *Parser {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Parser{
		logger:  logger.WithField("component", "parser"),
		metrics: m,
	}
}

// Run reads r until EOF, classifying every LF-terminated line and handing
// events to h in stream order. A trailing CR is stripped and a final line
// without LF is discarded. Run returns nil at EOF, ctx.Err() when the
// context is cancelled between lines, and an error wrapping ErrStream when a
// read fails. Closing r unblocks a pending read.
func (p *Parser) Run(ctx context.Context, r io.Reader, h Handler) error {
	br := bufio.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := br.ReadBytes('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(line) > 0 {
					p.logger.Debug("Discarding unterminated line", "bytes", len(line))
				}
				return nil
			}
			return fmt.Errorf("%w: %w", ErrStream, err)
		}

		line = bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'})
		p.dispatch(string(line), h)
	}
}

func (p *Parser) dispatch(line string, h Handler) {
	ev, ok := Classify(line)
	if p.metrics != nil {
		p.metrics.RecordLine(ok)
	}
	if !ok {
		return
	}
	if p.metrics != nil {
		p.metrics.RecordEvent(ev.Kind())
	}
	p.logger.Debug("Parsed event", "kind", ev.Kind(), "line", line)
	h.HandleEvent(ev)
}

// Start runs Run on a new goroutine. The channel receives Run's result and is
// then closed.
func (p *Parser) Start(ctx context.Context, r io.Reader, h Handler) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- p.Run(ctx, r, h)
	}()
	return done
}
