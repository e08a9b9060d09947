// Package harness runs the training harness as a child process.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/dmmcquay/leelawatcher/internal/config"
	"github.com/dmmcquay/leelawatcher/internal/logging"
	"github.com/dmmcquay/leelawatcher/internal/metrics"
)

// DefaultStopTimeout is how long Stop waits after interrupting the harness
// before killing it.
const DefaultStopTimeout = 5 * time.Second

// ErrAlreadyRunning is returned by Start on a running process.
var ErrAlreadyRunning = errors.New("harness already running")

// Process manages one run of the harness. Stdout and stderr are merged into
// the stream returned by Start.
type Process struct {
	config  *config.HarnessConfig
	logger  logging.ContextLogger
	metrics *metrics.PrometheusCollector

	StopTimeout time.Duration

	mu      sync.Mutex
	cmd     *exec.Cmd
	output  *os.File
	running bool
	done    chan struct{}
	waitErr error
}

// NewProcess creates a harness process. m may be nil.
func NewProcess(cfg *config.HarnessConfig, logger logging.ContextLogger, m *metrics.PrometheusCollector) *Process {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Process{
		config:      cfg,
		logger:      logger.WithField("component", "harness"),
		metrics:     m,
		StopTimeout: DefaultStopTimeout,
	}
}

// Start launches the harness and returns its combined output. The stream
// reaches EOF once the harness and every child holding its output exit.
// Cancelling ctx kills the harness.
func (p *Process) Start(ctx context.Context) (io.ReadCloser, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil, ErrAlreadyRunning
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create output pipe: %w", err)
	}

	cmd := exec.CommandContext(ctx, p.config.Command, p.config.Args...) // #nosec G204 -- command is operator configuration
	cmd.Dir = p.config.Dir
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		_ = pr.Close()
		_ = pw.Close()
		p.record(func(m *metrics.PrometheusCollector) { m.RecordHarnessError() })
		return nil, fmt.Errorf("failed to start harness %s: %w", p.config.Command, err)
	}
	// The child holds its own copy of the write end.
	_ = pw.Close()

	p.cmd = cmd
	p.output = pr
	p.running = true
	p.done = make(chan struct{})
	p.waitErr = nil

	p.logger.Info("Harness started",
		"command", p.config.Command,
		"dir", p.config.Dir,
		"pid", cmd.Process.Pid,
	)
	p.record(func(m *metrics.PrometheusCollector) { m.RecordHarnessStatus(true) })

	go p.wait(cmd, p.done)

	return pr, nil
}

func (p *Process) wait(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()

	p.mu.Lock()
	p.running = false
	p.waitErr = err
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("Harness exited with error", "error", err.Error())
		p.record(func(m *metrics.PrometheusCollector) { m.RecordHarnessError() })
	} else {
		p.logger.Info("Harness exited")
	}
	p.record(func(m *metrics.PrometheusCollector) { m.RecordHarnessStatus(false) })
	close(done)
}

// Done is closed when the harness exits. It is nil before Start.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err returns the exit error after Done is closed.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waitErr
}

// IsRunning returns whether the harness is running.
func (p *Process) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop interrupts the harness, kills it if it outlives StopTimeout and
// closes the output stream, which ends any reader blocked on it.
func (p *Process) Stop() error {
	p.mu.Lock()
	cmd, done, output, running := p.cmd, p.done, p.output, p.running
	p.output = nil
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}

	if running && cmd.Process != nil {
		if err := cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.logger.Debug("Interrupt failed, killing harness", "error", err.Error())
			_ = cmd.Process.Kill()
		}

		select {
		case <-done:
		case <-time.After(p.StopTimeout):
			p.logger.Warn("Harness did not exit in time, killing", "timeout", p.StopTimeout.String())
			_ = cmd.Process.Kill()
			<-done
		}
	}

	if output != nil {
		_ = output.Close()
	}
	p.logger.Info("Harness stopped")
	return nil
}

func (p *Process) record(f func(m *metrics.PrometheusCollector)) {
	if p.metrics != nil {
		f(p.metrics)
	}
}
