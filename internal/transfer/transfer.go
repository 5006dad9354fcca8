package transfer

import (
	"errors"
	"fmt"
	"math"

	"github.com/brewern5/LoRa-Research/internal/checksum"
	"github.com/brewern5/LoRa-Research/internal/protocol"
)

// Reassembly errors
var (
	ErrIncompleteTransfer = errors.New("incomplete transfer")
	ErrIntegrityFailure   = errors.New("integrity check failed")
)

// Params carries the addressing and radio parameters stamped on every
// packet of one transfer.
type Params struct {
	Codec      protocol.Codec
	SampleHz   uint16
	DurationMs uint16
	SrcID      uint8
	DstID      uint8
	ExpID      uint8
	SessionID  uint16
	TxPow      uint8
	SF         uint8
	CR         uint8
}

func (p Params) header(t protocol.PacketType, seq uint16) protocol.Header {
	return protocol.Header{
		Version:   protocol.ProtocolVersion,
		Type:      t,
		SrcID:     p.SrcID,
		DstID:     p.DstID,
		ExpID:     p.ExpID,
		SessionID: p.SessionID,
		SeqNum:    seq,
		TxPow:     p.TxPow,
		SF:        p.SF,
		CR:        p.CR,
	}
}

// Build fragments an audio buffer into the full transmission sequence:
// one AUDIO_START packet, ceil(len/245) AUDIO_DATA packets with 0-based
// sequence numbers, and one AUDIO_END packet whose seq_num equals the
// fragment count. Both checksums are computed over the whole buffer up
// front. An empty buffer yields exactly START + END.
func Build(buf []byte, p Params) ([]protocol.Packet, error) {
	totalSize := len(buf)
	totalFrags := (totalSize + protocol.MaxDataPayload - 1) / protocol.MaxDataPayload
	if totalFrags > math.MaxUint16 {
		return nil, fmt.Errorf("buffer of %d bytes needs %d fragments, exceeds the 16-bit fragment counter", totalSize, totalFrags)
	}

	c16 := checksum.CRC16(buf)
	c32 := checksum.CRC32(buf)

	packets := make([]protocol.Packet, 0, totalFrags+2)

	start := protocol.AudioStartPayload{
		TotalFrags: uint16(totalFrags),
		CodecID:    p.Codec,
		SampleHz:   p.SampleHz,
		DurationMs: p.DurationMs,
		TotalSize:  uint32(totalSize),
		CRC16:      c16,
	}
	packets = append(packets, protocol.Packet{
		Header:  p.header(protocol.PacketAudioStart, 0),
		Payload: start.Encode(),
	})

	for seq := 0; seq < totalFrags; seq++ {
		offset := seq * protocol.MaxDataPayload
		end := offset + protocol.MaxDataPayload
		if end > totalSize {
			end = totalSize
		}
		frag := make([]byte, end-offset)
		copy(frag, buf[offset:end])

		packets = append(packets, protocol.Packet{
			Header:  p.header(protocol.PacketAudioData, uint16(seq)),
			Payload: frag,
		})
	}

	endPayload := protocol.AudioEndPayload{
		FragCount: uint16(totalFrags),
		CRC32:     c32,
	}
	packets = append(packets, protocol.Packet{
		Header:  p.header(protocol.PacketAudioEnd, uint16(totalFrags)),
		Payload: endPayload.Encode(),
	})

	return packets, nil
}

// DataPackets filters a packet sequence down to its AUDIO_DATA fragments.
func DataPackets(packets []protocol.Packet) []protocol.Packet {
	var data []protocol.Packet
	for _, pkt := range packets {
		if pkt.Header.Type == protocol.PacketAudioData {
			data = append(data, pkt)
		}
	}
	return data
}

// Reassemble reconstructs the original buffer from the data fragments of
// one session. Fragments may arrive in any order and may contain
// duplicates (the first copy of a sequence number wins). A sequence
// number missing from 0..frag_count-1 yields ErrIncompleteTransfer; a
// CRC-32 mismatch against the END payload yields ErrIntegrityFailure
// with the assembled bytes still returned for inspection.
func Reassemble(dataPackets []protocol.Packet, start *protocol.AudioStartPayload, end *protocol.AudioEndPayload) ([]byte, error) {
	fragments := make(map[uint16][]byte, len(dataPackets))
	for _, pkt := range dataPackets {
		if pkt.Header.Type != protocol.PacketAudioData {
			continue
		}
		if _, seen := fragments[pkt.Header.SeqNum]; seen {
			continue
		}
		fragments[pkt.Header.SeqNum] = pkt.Payload
	}

	assembled := make([]byte, 0, start.TotalSize)
	for seq := uint16(0); seq < end.FragCount; seq++ {
		frag, ok := fragments[seq]
		if !ok {
			return nil, fmt.Errorf("missing fragment seq=%d of %d: %w",
				seq, end.FragCount, ErrIncompleteTransfer)
		}
		assembled = append(assembled, frag...)
	}

	// Guard against trailing padding on the final fragment.
	if uint32(len(assembled)) > start.TotalSize {
		assembled = assembled[:start.TotalSize]
	}

	if got := checksum.CRC32(assembled); got != end.CRC32 {
		return assembled, fmt.Errorf("crc32 mismatch: got 0x%08X, expected 0x%08X: %w",
			got, end.CRC32, ErrIntegrityFailure)
	}

	return assembled, nil
}

// RampPCM generates a dummy audio buffer with a repeating 0x00..0xFF ramp.
// Corruption or misalignment is easy to spot when inspecting hex output.
func RampPCM(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte(i % 256)
	}
	return buf
}
