package session

import (
	"time"

	"github.com/google/uuid"
)

// SessionReport is the derived, render-ready view of one receiver
// session.
type SessionReport struct {
	SessionID     uint16     `json:"session_id"`
	ExpID         uint8      `json:"exp_id"`
	Codec         string     `json:"codec"`
	SampleHz      uint16     `json:"sample_hz"`
	TotalSize     uint32     `json:"total_size"`
	FragsReceived int        `json:"frags_received"`
	FragsExpected int        `json:"frags_expected"`
	Loss          int        `json:"loss"`
	LossPercent   float64    `json:"loss_percent"`
	Closed        bool       `json:"closed"`
	CRCOK         bool       `json:"crc_ok"`
	TimedOut      bool       `json:"timed_out"`
	DurationMs    *int64     `json:"duration_ms,omitempty"`
	RSSI          *LinkStats `json:"rssi,omitempty"`
	SNR           *LinkStats `json:"snr,omitempty"`
}

// Report is a complete reconstruction result, stamped with a run id so
// saved reports can be cross-referenced.
type Report struct {
	RunID        string          `json:"run_id"`
	GeneratedAt  time.Time       `json:"generated_at"`
	Sessions     []SessionReport `json:"sessions"`
	Observations int             `json:"observations"`
	Malformed    int             `json:"malformed_records"`
}

// ReportSession builds the derived view of one session.
func ReportSession(s *ReceiverSession) SessionReport {
	loss, lossPct := s.Loss()

	rep := SessionReport{
		SessionID:     s.SessionID,
		ExpID:         s.ExpID,
		Codec:         s.Codec.String(),
		SampleHz:      s.SampleHz,
		TotalSize:     s.TotalSize,
		FragsReceived: s.Received(),
		FragsExpected: s.Expected(),
		Loss:          loss,
		LossPercent:   lossPct,
		Closed:        s.Closed,
		CRCOK:         s.CRCOK,
		TimedOut:      s.TimedOut,
		DurationMs:    s.CloseMs,
	}

	if rssi, ok := s.RSSIStats(); ok {
		rep.RSSI = &rssi
	}
	if snr, ok := s.SNRStats(); ok {
		rep.SNR = &snr
	}

	return rep
}

// Report snapshots the current reconstruction state into a render-ready
// report, sessions in first-seen order.
func (r *Reconstructor) Report() Report {
	rep := Report{
		RunID:        uuid.NewString(),
		GeneratedAt:  time.Now().UTC(),
		Sessions:     make([]SessionReport, 0, len(r.order)),
		Observations: len(r.observations),
		Malformed:    r.malformed,
	}

	for _, id := range r.order {
		rep.Sessions = append(rep.Sessions, ReportSession(r.sessions[id]))
	}

	return rep
}
