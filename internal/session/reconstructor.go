package session

import (
	"bufio"
	"fmt"
	"io"

	"github.com/brewern5/LoRa-Research/internal/protocol"
)

// Fragment is one per-fragment link-quality observation attached to a
// receiver session, in arrival order.
type Fragment struct {
	Seq         uint16  `json:"seq"`
	RSSI        float64 `json:"rssi"`
	SNR         float64 `json:"snr"`
	Len         int     `json:"len"`
	TimestampMs int64   `json:"timestamp_ms"`
}

// ReceiverSession accumulates everything a receiver observed about one
// transfer: the declared metadata from the SESSION_START record, the
// per-fragment observations, and the closing verdict from SESSION_END.
type ReceiverSession struct {
	SessionID uint16 `json:"session_id"`
	ExpID     uint8  `json:"exp_id"`

	// Declared by the SESSION_START record
	TotalFrags uint16         `json:"total_frags"`
	Codec      protocol.Codec `json:"codec"`
	SampleHz   uint16         `json:"sample_hz"`
	DurationMs uint16         `json:"duration_ms"`
	TotalSize  uint32         `json:"total_size"`

	// Per-fragment observations in arrival order
	Fragments []Fragment `json:"fragments"`

	// Closing fields from the SESSION_END record
	Closed        bool   `json:"closed"`
	FragsReceived uint16 `json:"frags_received"`
	FragsExpected uint16 `json:"frags_expected"`
	CRCOK         bool   `json:"crc_ok"`
	CloseMs       *int64 `json:"close_duration_ms"`
	TimedOut      bool   `json:"timed_out"`
}

// Received returns the closing fragment count when the session is
// closed, otherwise the number of fragments observed so far.
func (s *ReceiverSession) Received() int {
	if s.Closed {
		return int(s.FragsReceived)
	}
	return len(s.Fragments)
}

// Expected returns the closing expected count when the session is
// closed, otherwise the count declared by SESSION_START.
func (s *ReceiverSession) Expected() int {
	if s.Closed {
		return int(s.FragsExpected)
	}
	return int(s.TotalFrags)
}

// Loss returns the lost-fragment count and loss percentage. Both are
// zero when the expected count is unknown.
func (s *ReceiverSession) Loss() (int, float64) {
	expected := s.Expected()
	if expected <= 0 {
		return 0, 0
	}
	lost := expected - s.Received()
	return lost, float64(lost) / float64(expected) * 100
}

// LinkStats summarizes one radio quality measurement across the
// fragments of a session.
type LinkStats struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
}

func (s *ReceiverSession) stats(value func(Fragment) float64) (LinkStats, bool) {
	if len(s.Fragments) == 0 {
		return LinkStats{}, false
	}

	st := LinkStats{Min: value(s.Fragments[0]), Max: value(s.Fragments[0])}
	sum := 0.0
	for _, f := range s.Fragments {
		v := value(f)
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
		sum += v
	}
	st.Avg = sum / float64(len(s.Fragments))
	return st, true
}

// RSSIStats returns min/max/average RSSI across observed fragments.
// ok is false when no fragments were observed.
func (s *ReceiverSession) RSSIStats() (LinkStats, bool) {
	return s.stats(func(f Fragment) float64 { return f.RSSI })
}

// SNRStats returns min/max/average SNR across observed fragments.
func (s *ReceiverSession) SNRStats() (LinkStats, bool) {
	return s.stats(func(f Fragment) float64 { return f.SNR })
}

// Reconstructor rebuilds per-session receiver state from an ordered
// stream of observation records. It performs a single linear scan and is
// not safe for concurrent use; a live collector must serialize Apply
// calls.
type Reconstructor struct {
	sessions map[uint16]*ReceiverSession
	order    []uint16 // session ids in first-seen order

	// All fragment observations, including those for unknown sessions.
	observations []FragmentObserved

	malformed int
}

// NewReconstructor creates an empty reconstructor.
func NewReconstructor() *Reconstructor {
	return &Reconstructor{
		sessions: make(map[uint16]*ReceiverSession),
	}
}

// Apply advances the per-session state machine with one record.
// Fragment records for unknown session ids are retained in the global
// observation list but not attached to any session; close records for
// unknown sessions are dropped. Malformed records only bump a counter.
func (r *Reconstructor) Apply(rec Record) {
	switch v := rec.(type) {
	case SessionOpen:
		r.applyOpen(v)
	case FragmentObserved:
		r.applyFragment(v)
	case SessionClose:
		r.applyClose(v)
	case Malformed:
		r.malformed++
	}
}

func (r *Reconstructor) applyOpen(rec SessionOpen) {
	if existing, ok := r.sessions[rec.SessionID]; ok {
		// Repeated SESSION_START updates the declared metadata but keeps
		// fragments already observed.
		existing.ExpID = rec.ExpID
		existing.TotalFrags = rec.TotalFrags
		existing.Codec = rec.Codec
		existing.SampleHz = rec.SampleHz
		existing.DurationMs = rec.DurationMs
		existing.TotalSize = rec.TotalSize
		return
	}

	r.sessions[rec.SessionID] = &ReceiverSession{
		SessionID:  rec.SessionID,
		ExpID:      rec.ExpID,
		TotalFrags: rec.TotalFrags,
		Codec:      rec.Codec,
		SampleHz:   rec.SampleHz,
		DurationMs: rec.DurationMs,
		TotalSize:  rec.TotalSize,
	}
	r.order = append(r.order, rec.SessionID)
}

func (r *Reconstructor) applyFragment(rec FragmentObserved) {
	r.observations = append(r.observations, rec)

	s, ok := r.sessions[rec.SessionID]
	if !ok {
		return
	}
	s.Fragments = append(s.Fragments, Fragment{
		Seq:         rec.Seq,
		RSSI:        rec.RSSI,
		SNR:         rec.SNR,
		Len:         rec.Len,
		TimestampMs: rec.TimestampMs,
	})
}

func (r *Reconstructor) applyClose(rec SessionClose) {
	s, ok := r.sessions[rec.SessionID]
	if !ok {
		return
	}
	s.Closed = true
	s.FragsReceived = rec.FragsReceived
	s.FragsExpected = rec.FragsExpected
	s.CRCOK = rec.CRCOK
	s.CloseMs = rec.DurationMs
	s.TimedOut = rec.TimedOut
}

// ReadFrom scans a receiver log line by line, applying every parsed
// record. It returns the number of records applied (malformed included)
// and any read error from the underlying stream.
func (r *Reconstructor) ReadFrom(rd io.Reader) (int, error) {
	scanner := bufio.NewScanner(rd)
	applied := 0
	for scanner.Scan() {
		rec := ParseRecord(scanner.Text())
		if rec == nil {
			continue
		}
		r.Apply(rec)
		applied++
	}
	if err := scanner.Err(); err != nil {
		return applied, fmt.Errorf("failed to read record stream: %w", err)
	}
	return applied, nil
}

// Session returns the reconstructed state for one session id.
func (r *Reconstructor) Session(id uint16) (*ReceiverSession, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// SessionIDs returns all known session ids in first-seen order.
func (r *Reconstructor) SessionIDs() []uint16 {
	ids := make([]uint16, len(r.order))
	copy(ids, r.order)
	return ids
}

// SessionCount returns the number of known sessions.
func (r *Reconstructor) SessionCount() int {
	return len(r.sessions)
}

// ObservationCount returns the total number of fragment observations,
// including orphans that never matched a session.
func (r *Reconstructor) ObservationCount() int {
	return len(r.observations)
}

// MalformedCount returns the number of malformed records skipped.
func (r *Reconstructor) MalformedCount() int {
	return r.malformed
}
