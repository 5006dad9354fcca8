package session

import (
	"strconv"
	"strings"

	"github.com/brewern5/LoRa-Research/internal/protocol"
)

// Record kind tags as they appear in receiver logs.
const (
	tagSessionStart = "SESSION_START"
	tagRX           = "RX"
	tagSessionEnd   = "SESSION_END"

	// timeoutSentinel replaces the duration field of a SESSION_END record
	// when the receiver gave up on the transfer.
	timeoutSentinel = "TIMEOUT"
)

// Record is one parsed receiver-log line. The concrete type is one of
// SessionOpen, FragmentObserved, SessionClose or Malformed.
type Record interface {
	isRecord()
}

// SessionOpen is the parsed form of a SESSION_START line:
// SESSION_START,exp_id,session_id,total_frags,codec,sample_hz,duration_ms,total_size
type SessionOpen struct {
	ExpID      uint8
	SessionID  uint16
	TotalFrags uint16
	Codec      protocol.Codec
	SampleHz   uint16
	DurationMs uint16
	TotalSize  uint32
}

// FragmentObserved is the parsed form of an RX line:
// RX,exp_id,session_id,seq,rssi,snr,len,timestamp_ms
type FragmentObserved struct {
	ExpID       uint8
	SessionID   uint16
	Seq         uint16
	RSSI        float64
	SNR         float64
	Len         int
	TimestampMs int64
}

// SessionClose is the parsed form of a SESSION_END line:
// SESSION_END,exp_id,session_id,frags_received,frags_expected,crc_ok,duration_ms|TIMEOUT
type SessionClose struct {
	ExpID         uint8
	SessionID     uint16
	FragsReceived uint16
	FragsExpected uint16
	CRCOK         bool
	DurationMs    *int64 // nil when the receiver timed out
	TimedOut      bool
}

// Malformed carries a line that had a known tag but could not be parsed,
// or an unknown tag entirely. Reconstruction skips these without error;
// receiver logs may be partial or noisy.
type Malformed struct {
	Line string
}

func (SessionOpen) isRecord()      {}
func (FragmentObserved) isRecord() {}
func (SessionClose) isRecord()     {}
func (Malformed) isRecord()        {}

// ParseRecord parses one receiver-log line into a tagged record.
// Blank lines and lines starting with '#' yield nil (skipped entirely);
// anything else that cannot be parsed yields Malformed.
func ParseRecord(line string) Record {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	parts := strings.Split(line, ",")
	switch parts[0] {
	case tagSessionStart:
		return parseSessionOpen(line, parts)
	case tagRX:
		return parseFragmentObserved(line, parts)
	case tagSessionEnd:
		return parseSessionClose(line, parts)
	default:
		return Malformed{Line: line}
	}
}

func parseSessionOpen(line string, parts []string) Record {
	if len(parts) < 8 {
		return Malformed{Line: line}
	}

	expID, err1 := parseUint8(parts[1])
	sessionID, err2 := parseUint16(parts[2])
	totalFrags, err3 := parseUint16(parts[3])
	codec, err4 := parseUint8(parts[4])
	sampleHz, err5 := parseUint16(parts[5])
	durationMs, err6 := parseUint16(parts[6])
	totalSize, err7 := strconv.ParseUint(strings.TrimSpace(parts[7]), 10, 32)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil ||
		err5 != nil || err6 != nil || err7 != nil {
		return Malformed{Line: line}
	}

	return SessionOpen{
		ExpID:      expID,
		SessionID:  sessionID,
		TotalFrags: totalFrags,
		Codec:      protocol.Codec(codec),
		SampleHz:   sampleHz,
		DurationMs: durationMs,
		TotalSize:  uint32(totalSize),
	}
}

func parseFragmentObserved(line string, parts []string) Record {
	if len(parts) < 8 {
		return Malformed{Line: line}
	}

	expID, err1 := parseUint8(parts[1])
	sessionID, err2 := parseUint16(parts[2])
	seq, err3 := parseUint16(parts[3])
	rssi, err4 := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
	snr, err5 := strconv.ParseFloat(strings.TrimSpace(parts[5]), 64)
	length, err6 := strconv.Atoi(strings.TrimSpace(parts[6]))
	timestamp, err7 := strconv.ParseInt(strings.TrimSpace(parts[7]), 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil ||
		err5 != nil || err6 != nil || err7 != nil {
		return Malformed{Line: line}
	}

	return FragmentObserved{
		ExpID:       expID,
		SessionID:   sessionID,
		Seq:         seq,
		RSSI:        rssi,
		SNR:         snr,
		Len:         length,
		TimestampMs: timestamp,
	}
}

func parseSessionClose(line string, parts []string) Record {
	if len(parts) < 7 {
		return Malformed{Line: line}
	}

	expID, err1 := parseUint8(parts[1])
	sessionID, err2 := parseUint16(parts[2])
	fragsReceived, err3 := parseUint16(parts[3])
	fragsExpected, err4 := parseUint16(parts[4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return Malformed{Line: line}
	}

	rec := SessionClose{
		ExpID:         expID,
		SessionID:     sessionID,
		FragsReceived: fragsReceived,
		FragsExpected: fragsExpected,
		CRCOK:         strings.TrimSpace(parts[5]) == "1",
	}

	duration := strings.TrimSpace(parts[6])
	if duration == timeoutSentinel {
		rec.TimedOut = true
	} else if ms, err := strconv.ParseInt(duration, 10, 64); err == nil {
		rec.DurationMs = &ms
	}
	// Any other non-numeric duration leaves both fields unset, matching
	// the tolerant treatment of noisy logs.

	return rec
}

func parseUint8(s string) (uint8, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 8)
	return uint8(v), err
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	return uint16(v), err
}
