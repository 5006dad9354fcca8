package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/brewern5/LoRa-Research/internal/config"
	"github.com/brewern5/LoRa-Research/internal/metrics"
	"github.com/brewern5/LoRa-Research/internal/session"
)

// UDPCollector receives observation record lines from receiver nodes
type UDPCollector struct {
	conn    *net.UDPConn
	config  *config.CollectorConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Concurrency management. The receive goroutine must be fully stopped
	// before recordChan closes, or a datagram arriving mid-shutdown would
	// send on a closed channel.
	ctx     context.Context
	cancel  context.CancelFunc
	recvWG  sync.WaitGroup
	applyWG sync.WaitGroup

	// Record processing. A single applier goroutine drains recordChan so
	// records are applied in arrival order; the reconstructor depends on
	// SESSION_START preceding the fragments it owns.
	recordChan    chan string
	reconstructor *session.Reconstructor

	// Statistics
	datagramsReceived uint64
	recordsApplied    uint64
	openSessions      int
	mu                sync.RWMutex
}

// NewUDPCollector creates a new UDP collector instance
func NewUDPCollector(cfg *config.CollectorConfig, logger *slog.Logger, m *metrics.Metrics) *UDPCollector {
	ctx, cancel := context.WithCancel(context.Background())

	return &UDPCollector{
		config:        cfg,
		logger:        logger,
		metrics:       m,
		ctx:           ctx,
		cancel:        cancel,
		recordChan:    make(chan string, 1000),
		reconstructor: session.NewReconstructor(),
	}
}

// Start begins listening for observation datagrams
func (c *UDPCollector) Start() error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", c.config.BindAddress, c.config.UDPPort))
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP: %w", err)
	}

	c.conn = conn

	if err := c.conn.SetReadBuffer(c.config.BufferSize); err != nil {
		c.logger.Warn("Failed to set UDP read buffer size",
			slog.Int("buffer_size", c.config.BufferSize),
			slog.String("error", err.Error()),
		)
	}

	c.logger.Info("UDP collector started",
		slog.String("address", addr.String()),
		slog.Int("buffer_size", c.config.BufferSize),
	)

	c.applyWG.Add(1)
	go c.applyLoop()

	c.recvWG.Add(1)
	go c.receiveLoop()

	return nil
}

// Stop gracefully stops the collector
func (c *UDPCollector) Stop() error {
	c.logger.Info("Stopping UDP collector...")

	c.cancel()

	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("Error closing UDP connection", slog.String("error", err.Error()))
		}
	}

	// Wait out the receiver before closing the channel it sends on, then
	// let the applier drain what is already queued.
	c.recvWG.Wait()
	close(c.recordChan)
	c.applyWG.Wait()

	c.mu.RLock()
	datagramsReceived := c.datagramsReceived
	recordsApplied := c.recordsApplied
	c.mu.RUnlock()

	c.logger.Info("UDP collector stopped",
		slog.Uint64("datagrams_received", datagramsReceived),
		slog.Uint64("records_applied", recordsApplied),
	)

	return nil
}

// receiveLoop is the main datagram receiving loop
func (c *UDPCollector) receiveLoop() {
	defer c.recvWG.Done()

	buffer := make([]byte, c.config.BufferSize)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Receive loop stopping due to context cancellation")
			return
		default:
			// Continue to receive datagrams
		}

		// Set read deadline to check for context cancellation periodically
		if err := c.conn.SetReadDeadline(time.Now().Add(1 * time.Second)); err != nil {
			c.logger.Error("Failed to set read deadline", slog.String("error", err.Error()))
			continue
		}

		n, remoteAddr, err := c.conn.ReadFromUDP(buffer)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}

			select {
			case <-c.ctx.Done():
				return
			default:
				c.logger.Error("Failed to read UDP datagram", slog.String("error", err.Error()))
				continue
			}
		}

		c.mu.Lock()
		c.datagramsReceived++
		c.mu.Unlock()
		c.metrics.RecordDatagramReceived()

		// A datagram may carry several newline-separated record lines.
		for _, line := range strings.Split(string(buffer[:n]), "\n") {
			select {
			case c.recordChan <- line:
				// Record queued
			default:
				c.logger.Warn("Record queue full, dropping record",
					slog.String("remote_addr", remoteAddr.String()),
					slog.Int("datagram_size", n),
				)
			}
		}
		c.metrics.SetQueueSize(len(c.recordChan))
	}
}

// applyLoop drains the record channel into the reconstructor in order
func (c *UDPCollector) applyLoop() {
	defer c.applyWG.Done()

	c.logger.Debug("Record applier started")

	for line := range c.recordChan {
		c.applyLine(line)
	}

	c.logger.Debug("Record applier stopped")
}

// applyLine parses and applies a single record line
func (c *UDPCollector) applyLine(line string) {
	rec := session.ParseRecord(line)
	if rec == nil {
		return
	}

	c.mu.Lock()
	var priorSession, priorClosed bool
	switch r := rec.(type) {
	case session.SessionOpen:
		_, priorSession = c.reconstructor.Session(r.SessionID)
	case session.SessionClose:
		if s, ok := c.reconstructor.Session(r.SessionID); ok {
			priorSession = true
			priorClosed = s.Closed
		}
	}
	c.reconstructor.Apply(rec)
	c.recordsApplied++
	c.mu.Unlock()

	c.metrics.RecordRecordApplied()

	switch v := rec.(type) {
	case session.SessionOpen:
		c.mu.Lock()
		if !priorSession {
			c.openSessions++
		}
		open := c.openSessions
		c.mu.Unlock()

		if !priorSession {
			c.metrics.RecordSessionOpened()
		}
		c.metrics.SetOpenSessions(open)

		c.logger.Info("Session opened",
			slog.Int("session_id", int(v.SessionID)),
			slog.Int("exp_id", int(v.ExpID)),
			slog.Int("total_frags", int(v.TotalFrags)),
			slog.String("codec", v.Codec.String()),
			slog.Int("total_size", int(v.TotalSize)),
		)

	case session.FragmentObserved:
		c.mu.RLock()
		_, known := c.reconstructor.Session(v.SessionID)
		c.mu.RUnlock()

		c.metrics.RecordFragmentObserved(v.RSSI, v.SNR, !known)

		c.logger.Debug("Fragment observed",
			slog.Int("session_id", int(v.SessionID)),
			slog.Int("seq", int(v.Seq)),
			slog.Float64("rssi", v.RSSI),
			slog.Float64("snr", v.SNR),
			slog.Int("len", v.Len),
		)

	case session.SessionClose:
		// Only a first close of a known session takes a session off the
		// open gauge; orphan and duplicate closes must not skew it.
		var lossPct float64
		c.mu.Lock()
		if priorSession && !priorClosed {
			if c.openSessions > 0 {
				c.openSessions--
			}
			if s, ok := c.reconstructor.Session(v.SessionID); ok {
				_, lossPct = s.Loss()
			}
		}
		open := c.openSessions
		c.mu.Unlock()

		c.metrics.SetOpenSessions(open)

		if !priorSession {
			c.logger.Warn("Close record for unknown session",
				slog.Int("session_id", int(v.SessionID)),
			)
			return
		}

		if priorClosed {
			c.logger.Debug("Duplicate close record",
				slog.Int("session_id", int(v.SessionID)),
			)
			return
		}
		var durationSeconds *float64
		if v.DurationMs != nil {
			d := float64(*v.DurationMs) / 1000.0
			durationSeconds = &d
		}
		c.metrics.RecordSessionClosed(v.TimedOut, lossPct/100.0, durationSeconds)

		c.logger.Info("Session closed",
			slog.Int("session_id", int(v.SessionID)),
			slog.Int("frags_received", int(v.FragsReceived)),
			slog.Int("frags_expected", int(v.FragsExpected)),
			slog.Bool("crc_ok", v.CRCOK),
			slog.Bool("timed_out", v.TimedOut),
		)

	case session.Malformed:
		c.metrics.RecordMalformedRecord()
		c.logger.Debug("Malformed record skipped", slog.String("line", v.Line))
	}
}

// Report snapshots the current reconstruction state
func (c *UDPCollector) Report() session.Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reconstructor.Report()
}

// SessionDetail snapshots one session's derived report and fragment list.
// The applier goroutine mutates sessions in place, so callers get copies
// built under the lock rather than the live session.
func (c *UDPCollector) SessionDetail(id uint16) (session.SessionReport, []session.Fragment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.reconstructor.Session(id)
	if !ok {
		return session.SessionReport{}, nil, false
	}

	frags := make([]session.Fragment, len(s.Fragments))
	copy(frags, s.Fragments)

	return session.ReportSession(s), frags, true
}

// GetStatistics returns current collector statistics
func (c *UDPCollector) GetStatistics() CollectorStatistics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return CollectorStatistics{
		DatagramsReceived: c.datagramsReceived,
		RecordsApplied:    c.recordsApplied,
		MalformedRecords:  uint64(c.reconstructor.MalformedCount()),
		KnownSessions:     uint64(c.reconstructor.SessionCount()),
		OpenSessions:      uint64(c.openSessions),
		Observations:      uint64(c.reconstructor.ObservationCount()),
		QueueSize:         uint64(len(c.recordChan)),
		QueueCapacity:     uint64(cap(c.recordChan)),
	}
}

// CollectorStatistics represents collector performance metrics
type CollectorStatistics struct {
	DatagramsReceived uint64 `json:"datagrams_received"`
	RecordsApplied    uint64 `json:"records_applied"`
	MalformedRecords  uint64 `json:"malformed_records"`
	KnownSessions     uint64 `json:"known_sessions"`
	OpenSessions      uint64 `json:"open_sessions"`
	Observations      uint64 `json:"observations"`
	QueueSize         uint64 `json:"queue_size"`
	QueueCapacity     uint64 `json:"queue_capacity"`
}
