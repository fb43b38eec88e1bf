package relay

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"pulse_relay/internal/metrics"
	"pulse_relay/internal/pipeline"
)

const (
	DefaultSettleDelay      = 500 * time.Millisecond
	DefaultSimulationMarker = "TEST"
	readBufferSize          = 4096
)

// OpenerFunc opens the device at path. The returned port must unblock a
// pending Read when it is closed.
type OpenerFunc func(path string) (io.ReadCloser, error)

// Sink receives every full batch. It is called with the session lock held and
// must not block.
type Sink interface {
	OnBatch(batch pipeline.Batch)
}

// Config controls the connection lifecycle and the sample pipeline. A zero
// SettleDelay means DefaultSettleDelay; a negative one disables the wait.
type Config struct {
	BatchSize        int
	Delimiter        string
	SettleDelay      time.Duration
	SimulationMarker string
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = pipeline.DefaultBatchSize
	}
	if c.Delimiter == "" {
		c.Delimiter = pipeline.DefaultDelimiter
	}
	switch {
	case c.SettleDelay == 0:
		c.SettleDelay = DefaultSettleDelay
	case c.SettleDelay < 0:
		c.SettleDelay = 0
	}
	return c
}

// Status is a point-in-time view of the session.
type Status struct {
	Path    string `json:"path"`
	Open    bool   `json:"open"`
	Epoch   uint64 `json:"epoch"`
	Pending int    `json:"pending"`
}

// connection is one device link. Its extractor is only touched by its reader goroutine.
type connection struct {
	path      string
	epoch     uint64
	port      io.ReadCloser
	extractor *pipeline.LineExtractor
}

// Session owns the single device connection and the batch in progress.
//
// connectMu serializes Connect and Close so teardown, settle and open never
// interleave. mu guards the active connection, the epoch and the batcher;
// every sample is checked against the epoch under mu, so data read from a
// superseded connection is dropped once its replacement has started.
type Session struct {
	connectMu sync.Mutex
	attempted bool // an open has been tried; guarded by connectMu

	mu      sync.Mutex
	epoch   uint64
	conn    *connection
	batcher *pipeline.Batcher

	cfg     Config
	open    OpenerFunc
	sink    Sink
	log     *zap.SugaredLogger
	metrics *metrics.Metrics

	readers sync.WaitGroup
}

func New(cfg Config, open OpenerFunc, sink Sink, log *zap.SugaredLogger, m *metrics.Metrics) *Session {
	cfg = cfg.withDefaults()
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{
		batcher: pipeline.NewBatcher(cfg.BatchSize),
		cfg:     cfg,
		open:    open,
		sink:    sink,
		log:     log,
		metrics: m,
	}
}

// IsSimulation reports whether path selects simulation mode.
func (s *Session) IsSimulation(path string) bool {
	return s.cfg.SimulationMarker != "" && strings.Contains(path, s.cfg.SimulationMarker)
}

// Connect makes path the active device. Any open connection is closed first
// and its partial batch discarded. After any earlier open attempt the settle
// delay is observed before the new device is opened. Close failures of the old device are logged only. An open
// failure is returned as an *OpenError and leaves no connection open.
//
// Simulation paths are acknowledged immediately without touching any state.
func (s *Session) Connect(ctx context.Context, path string) (string, error) {
	if s.IsSimulation(path) {
		s.metrics.Connect(metrics.OutcomeSimulation)
		s.log.Infow("simulation mode selected", "path", path)
		return fmt.Sprintf("%s mode connected", path), nil
	}

	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	start := time.Now()
	old, epoch := s.supersede()
	s.metrics.SetEpoch(epoch)

	if old != nil {
		s.log.Infow("closing previous connection", "path", old.path, "epoch", old.epoch)
		if err := old.port.Close(); err != nil {
			s.metrics.CloseError()
			s.log.Errorw("failed to close previous connection", "path", old.path, "error", err)
		}
	}
	// Settle after any earlier open attempt, including a failed one.
	if s.attempted {
		if err := settle(ctx, s.cfg.SettleDelay); err != nil {
			return "", errors.Wrap(err, "waiting for device release")
		}
	}
	s.attempted = true

	// The pipeline exists before the device is opened; the reader starts as
	// soon as open returns.
	c := &connection{
		path:      path,
		epoch:     epoch,
		extractor: pipeline.NewLineExtractor(s.cfg.Delimiter),
	}

	port, err := s.open(path)
	s.metrics.ObserveReconnect(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Connect(metrics.OutcomeFailed)
		s.log.Errorw("connection failed", "path", path, "error", err)
		return "", &OpenError{Path: path, Err: err}
	}
	c.port = port

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	s.readers.Add(1)
	go s.readLoop(c)

	s.metrics.Connect(metrics.OutcomeOpened)
	s.metrics.SetConnectionOpen(true)
	s.log.Infow("connected", "path", path, "epoch", epoch, "replaced", old != nil)

	if old != nil {
		return fmt.Sprintf("%s connected (previous connection released)", path), nil
	}
	return fmt.Sprintf("%s connected", path), nil
}

// supersede detaches the active connection, starts a new epoch and drops the
// batch in progress, all under one lock acquisition.
func (s *Session) supersede() (*connection, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.conn
	s.conn = nil
	s.epoch++
	s.batcher.Reset()
	s.metrics.SetConnectionOpen(false)
	return old, s.epoch
}

func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) readLoop(c *connection) {
	defer s.readers.Done()

	buf := make([]byte, readBufferSize)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			s.ingest(c, buf[:n])
		}
		if err != nil {
			if s.isCurrent(c) {
				// The connection stays in place until the next Connect replaces it.
				s.metrics.DeviceError()
				s.log.Errorw("serial device error", "path", c.path, "epoch", c.epoch, "error", err)
			} else {
				s.log.Debugw("reader stopped", "path", c.path, "epoch", c.epoch)
			}
			return
		}
	}
}

// ingest runs chunk through the line extractor and parser of c and feeds the
// resulting samples into the shared batcher if c is still the active connection.
func (s *Session) ingest(c *connection, chunk []byte) {
	var samples []pipeline.Sample
	c.extractor.Feed(chunk, func(line string) {
		s.metrics.LineRead()
		sample, ok := pipeline.ParseSample(line)
		if !ok {
			s.metrics.NoiseDropped()
			return
		}
		s.metrics.SampleParsed()
		samples = append(samples, sample)
	})
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if c.epoch != s.epoch {
		s.metrics.StaleSamples(len(samples))
		return
	}
	for _, sample := range samples {
		if batch, full := s.batcher.Add(sample); full {
			s.sink.OnBatch(batch)
		}
	}
}

func (s *Session) isCurrent(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == c
}

// Status returns the active path, whether a connection is open, the current
// epoch and the number of samples waiting for a full batch.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{Epoch: s.epoch, Pending: s.batcher.Pending()}
	if s.conn != nil {
		st.Path = s.conn.path
		st.Open = true
	}
	return st
}

// Close closes the active connection and waits for its reader to exit.
func (s *Session) Close() error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	old, epoch := s.supersede()
	s.metrics.SetEpoch(epoch)

	var err error
	if old != nil {
		err = old.port.Close()
		s.log.Infow("connection closed", "path", old.path, "epoch", old.epoch)
	}
	s.readers.Wait()
	return errors.Wrap(err, "close device")
}
