package airtime

import (
	"math"

	"github.com/brewern5/LoRa-Research/internal/protocol"
)

// Full wire sizes of the three packet kinds in an audio transfer.
const (
	StartPacketSize = protocol.HeaderSize + protocol.StartPayloadSize // 23
	DataPacketSize  = protocol.MaxPacketSize                         // 255, max-size fragment
	EndPacketSize   = protocol.HeaderSize + protocol.EndPayloadSize  // 17
)

// preambleSymbols is the standard LoRa preamble length in symbols.
const preambleSymbols = 8

// PacketMs estimates the time-on-air of one packet in milliseconds,
// assuming explicit header mode. payloadBytes is the full wire size of
// the packet, sf the spreading factor, bwKhz the channel bandwidth in
// kHz and cr the coding rate denominator (5 means 4/5).
//
// Low data rate optimisation is applied automatically at SF11+ on a
// 125 kHz channel, matching the SX1262 datasheet.
func PacketMs(payloadBytes int, sf int, bwKhz float64, cr int) float64 {
	tSym := math.Exp2(float64(sf)) / (bwKhz * 1000) * 1000
	tPreamble := (preambleSymbols + 4.25) * tSym

	de := 0.0
	if sf >= 11 && bwKhz == 125.0 {
		de = 1.0
	}

	symbols := math.Ceil((8*float64(payloadBytes) - 4*float64(sf) + 28 + 16 - 20) /
		(4 * (float64(sf) - 2*de)))
	nPayload := 8 + math.Max(symbols, 0)*float64(cr+4)

	return tPreamble + nPayload*tSym
}

// Stats summarizes the estimated cost of one complete audio transfer.
type Stats struct {
	AudioBytes    int     `json:"audio_bytes"`
	TotalFrags    int     `json:"total_frags"`
	TotalPackets  int     `json:"total_packets"`
	AirtimeMs     float64 `json:"airtime_ms"`
	AirtimeS      float64 `json:"airtime_s"`
	ThroughputBps float64 `json:"throughput_bps"`
}

// TransferStats estimates total airtime and effective throughput for
// transferring audioBytes of audio. Every data packet is costed at the
// maximum 245-byte payload even though the final fragment of a real
// transfer is typically shorter, so the estimate errs slightly high.
func TransferStats(audioBytes int, sf int, bwKhz float64, cr int) Stats {
	totalFrags := (audioBytes + protocol.MaxDataPayload - 1) / protocol.MaxDataPayload

	total := PacketMs(StartPacketSize, sf, bwKhz, cr) +
		PacketMs(DataPacketSize, sf, bwKhz, cr)*float64(totalFrags) +
		PacketMs(EndPacketSize, sf, bwKhz, cr)

	throughput := 0.0
	if total > 0 && audioBytes > 0 {
		throughput = float64(audioBytes) * 8 / (total / 1000)
	}

	return Stats{
		AudioBytes:    audioBytes,
		TotalFrags:    totalFrags,
		TotalPackets:  totalFrags + 2,
		AirtimeMs:     total,
		AirtimeS:      total / 1000,
		ThroughputBps: throughput,
	}
}
