package session

import (
	"fmt"
	"strings"
	"testing"
)

func TestReconstructCleanSession(t *testing.T) {
	log := `
SESSION_START,1,100,5,0,16000,2000,1200
RX,1,100,0,-95.0,9.0,255,1000
RX,1,100,1,-96.0,8.5,255,1100
RX,1,100,2,-97.0,8.0,255,1200
RX,1,100,3,-96.5,7.5,255,1300
RX,1,100,4,-95.5,9.5,200,1400
SESSION_END,1,100,5,5,1,500
`

	r := NewReconstructor()
	applied, err := r.ReadFrom(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}
	if applied != 7 {
		t.Errorf("Expected 7 applied records, got %d", applied)
	}

	s, ok := r.Session(100)
	if !ok {
		t.Fatal("Expected session 100 to exist")
	}
	if s.Received() != 5 || s.Expected() != 5 {
		t.Errorf("Expected 5/5 fragments, got %d/%d", s.Received(), s.Expected())
	}
	if lost, pct := s.Loss(); lost != 0 || pct != 0 {
		t.Errorf("Expected zero loss, got %d (%.1f%%)", lost, pct)
	}
	if !s.Closed {
		t.Error("Expected session to be closed")
	}
	if !s.CRCOK {
		t.Error("Expected crc_ok true")
	}
	if s.TimedOut {
		t.Error("Expected timed_out false")
	}
	if s.CloseMs == nil || *s.CloseMs != 500 {
		t.Errorf("Expected duration 500 ms, got %v", s.CloseMs)
	}
	if len(s.Fragments) != 5 {
		t.Fatalf("Expected 5 attached fragments, got %d", len(s.Fragments))
	}
	if s.Fragments[4].Seq != 4 || s.Fragments[4].Len != 200 {
		t.Errorf("Unexpected last fragment: %+v", s.Fragments[4])
	}
}

func TestReconstructTimedOutSession(t *testing.T) {
	log := `SESSION_START,1,200,10,1,16000,2000,2400
RX,1,200,0,-100.0,4.0,255,1000
RX,1,200,3,-101.0,3.5,255,1300
SESSION_END,1,200,2,10,0,TIMEOUT
`

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(log)); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	s, ok := r.Session(200)
	if !ok {
		t.Fatal("Expected session 200 to exist")
	}
	if !s.TimedOut {
		t.Error("Expected timed_out true")
	}
	if s.CloseMs != nil {
		t.Errorf("Expected nil duration on timeout, got %d", *s.CloseMs)
	}
	if s.CRCOK {
		t.Error("Expected crc_ok false")
	}
	if lost, pct := s.Loss(); lost != 8 || pct != 80 {
		t.Errorf("Expected loss 8 (80%%), got %d (%.1f%%)", lost, pct)
	}
}

func TestOrphanFragmentsRetainedGlobally(t *testing.T) {
	log := `RX,1,999,0,-95.0,9.0,255,1000
SESSION_START,1,300,2,0,16000,2000,490
RX,1,300,0,-96.0,8.0,255,1100
RX,1,999,1,-95.0,9.0,255,1200
`

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(log)); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	if r.ObservationCount() != 3 {
		t.Errorf("Expected 3 global observations, got %d", r.ObservationCount())
	}
	if r.SessionCount() != 1 {
		t.Errorf("Expected 1 session, got %d", r.SessionCount())
	}
	if _, ok := r.Session(999); ok {
		t.Error("Fragment records alone must not create a session")
	}

	s, _ := r.Session(300)
	if len(s.Fragments) != 1 {
		t.Errorf("Expected 1 attached fragment, got %d", len(s.Fragments))
	}
}

func TestCloseForUnknownSessionDropped(t *testing.T) {
	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader("SESSION_END,1,555,5,5,1,500\n")); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}
	if r.SessionCount() != 0 {
		t.Errorf("Expected no sessions, got %d", r.SessionCount())
	}
}

func TestMalformedAndCommentLines(t *testing.T) {
	log := `# receiver boot
SESSION_START,1,400,1,0,16000,2000,100

GARBAGE LINE
RX,1,400,0,-90.0,10.0,100,1000
RX,1,400,broken
SESSION_END,1,400,1,1,1,120
`

	r := NewReconstructor()
	applied, err := r.ReadFrom(strings.NewReader(log))
	if err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}
	// Comment and blank lines are skipped before counting.
	if applied != 5 {
		t.Errorf("Expected 5 applied records, got %d", applied)
	}
	if r.MalformedCount() != 2 {
		t.Errorf("Expected 2 malformed records, got %d", r.MalformedCount())
	}

	s, ok := r.Session(400)
	if !ok {
		t.Fatal("Expected session 400 to exist")
	}
	if s.Received() != 1 || !s.CRCOK {
		t.Errorf("Malformed lines must not disturb session state: %+v", s)
	}
}

func TestRepeatedSessionStartKeepsFragments(t *testing.T) {
	log := `SESSION_START,1,500,4,0,16000,2000,800
RX,1,500,0,-95.0,9.0,255,1000
SESSION_START,1,500,6,1,8000,3000,1200
RX,1,500,1,-95.0,9.0,255,1100
`

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(log)); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	s, _ := r.Session(500)
	if s.TotalFrags != 6 {
		t.Errorf("Expected updated total frags 6, got %d", s.TotalFrags)
	}
	if s.TotalSize != 1200 {
		t.Errorf("Expected updated total size 1200, got %d", s.TotalSize)
	}
	if len(s.Fragments) != 2 {
		t.Errorf("Expected fragments to survive re-open, got %d", len(s.Fragments))
	}
	if r.SessionCount() != 1 {
		t.Errorf("Expected a single session, got %d", r.SessionCount())
	}
}

func TestSessionIDsFirstSeenOrder(t *testing.T) {
	log := `SESSION_START,1,30,1,0,16000,2000,100
SESSION_START,1,10,1,0,16000,2000,100
SESSION_START,1,20,1,0,16000,2000,100
`

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(log)); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	ids := r.SessionIDs()
	expected := []uint16{30, 10, 20}
	if len(ids) != len(expected) {
		t.Fatalf("Expected %d ids, got %d", len(expected), len(ids))
	}
	for i, id := range expected {
		if ids[i] != id {
			t.Errorf("Expected id %d at position %d, got %d", id, i, ids[i])
		}
	}
}

func TestLinkStats(t *testing.T) {
	log := `SESSION_START,1,600,3,0,16000,2000,600
RX,1,600,0,-90.0,10.0,255,1000
RX,1,600,1,-100.0,6.0,255,1100
RX,1,600,2,-95.0,8.0,90,1200
`

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(log)); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	s, _ := r.Session(600)
	rssi, ok := s.RSSIStats()
	if !ok {
		t.Fatal("Expected RSSI stats to be available")
	}
	if rssi.Min != -100 || rssi.Max != -90 || rssi.Avg != -95 {
		t.Errorf("Unexpected RSSI stats: %+v", rssi)
	}

	snr, ok := s.SNRStats()
	if !ok {
		t.Fatal("Expected SNR stats to be available")
	}
	if snr.Min != 6 || snr.Max != 10 || snr.Avg != 8 {
		t.Errorf("Unexpected SNR stats: %+v", snr)
	}
}

func TestLinkStatsEmpty(t *testing.T) {
	s := &ReceiverSession{SessionID: 1}
	if _, ok := s.RSSIStats(); ok {
		t.Error("Expected no RSSI stats without fragments")
	}
	if _, ok := s.SNRStats(); ok {
		t.Error("Expected no SNR stats without fragments")
	}
}

func TestReportSnapshot(t *testing.T) {
	log := `SESSION_START,1,700,5,0,16000,2000,1200
RX,1,700,0,-95.0,9.0,255,1000
RX,1,700,1,-96.0,8.0,255,1100
RX,1,888,0,-99.0,5.0,255,1150
SESSION_END,1,700,2,5,0,TIMEOUT
junk
`

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(log)); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	rep := r.Report()
	if rep.RunID == "" {
		t.Error("Expected report to carry a run id")
	}
	if rep.GeneratedAt.IsZero() {
		t.Error("Expected report to carry a timestamp")
	}
	if rep.Observations != 3 {
		t.Errorf("Expected 3 observations, got %d", rep.Observations)
	}
	if rep.Malformed != 1 {
		t.Errorf("Expected 1 malformed record, got %d", rep.Malformed)
	}
	if len(rep.Sessions) != 1 {
		t.Fatalf("Expected 1 session in report, got %d", len(rep.Sessions))
	}

	sr := rep.Sessions[0]
	if sr.SessionID != 700 {
		t.Errorf("Expected session 700, got %d", sr.SessionID)
	}
	if sr.FragsReceived != 2 || sr.FragsExpected != 5 {
		t.Errorf("Expected 2/5 fragments, got %d/%d", sr.FragsReceived, sr.FragsExpected)
	}
	if sr.Loss != 3 || sr.LossPercent != 60 {
		t.Errorf("Expected loss 3 (60%%), got %d (%.1f%%)", sr.Loss, sr.LossPercent)
	}
	if !sr.TimedOut || sr.CRCOK {
		t.Errorf("Expected timed-out CRC-failed session, got %+v", sr)
	}
	if sr.DurationMs != nil {
		t.Errorf("Expected nil duration, got %d", *sr.DurationMs)
	}
	if sr.RSSI == nil || sr.RSSI.Min != -96 || sr.RSSI.Max != -95 {
		t.Errorf("Unexpected report RSSI stats: %+v", sr.RSSI)
	}
}

func TestReconstructManySessions(t *testing.T) {
	var sb strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&sb, "SESSION_START,1,%d,2,0,16000,2000,490\n", i)
		fmt.Fprintf(&sb, "RX,1,%d,0,-95.0,9.0,255,1000\n", i)
		fmt.Fprintf(&sb, "RX,1,%d,1,-95.0,9.0,235,1100\n", i)
		fmt.Fprintf(&sb, "SESSION_END,1,%d,2,2,1,250\n", i)
	}

	r := NewReconstructor()
	if _, err := r.ReadFrom(strings.NewReader(sb.String())); err != nil {
		t.Fatalf("Unexpected read error: %v", err)
	}

	if r.SessionCount() != 20 {
		t.Fatalf("Expected 20 sessions, got %d", r.SessionCount())
	}
	for _, id := range r.SessionIDs() {
		s, _ := r.Session(id)
		if !s.Closed || !s.CRCOK || s.Received() != 2 {
			t.Errorf("Session %d in unexpected state: %+v", id, s)
		}
	}
}
