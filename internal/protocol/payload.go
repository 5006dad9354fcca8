package protocol

import (
	"encoding/binary"
	"fmt"
)

// AudioStartPayload announces a transfer before any data fragments
// Layout (13 bytes): [total_frags:2 LE][codec_id:1][sample_hz:2 LE]
// [duration_ms:2 LE][total_size:4 LE][crc16:2 LE]
type AudioStartPayload struct {
	TotalFrags uint16 // Number of data fragments that follow
	CodecID    Codec  // Audio encoding of the transferred buffer
	SampleHz   uint16 // Original sample rate in Hz
	DurationMs uint16 // Nominal audio duration in milliseconds
	TotalSize  uint32 // Original buffer length in bytes
	CRC16      uint16 // CRC-16/CCITT-FALSE of the full original buffer
}

// Encode serializes the payload into exactly StartPayloadSize bytes.
func (p *AudioStartPayload) Encode() []byte {
	buf := make([]byte, StartPayloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.TotalFrags)
	buf[2] = uint8(p.CodecID)
	binary.LittleEndian.PutUint16(buf[3:5], p.SampleHz)
	binary.LittleEndian.PutUint16(buf[5:7], p.DurationMs)
	binary.LittleEndian.PutUint32(buf[7:11], p.TotalSize)
	binary.LittleEndian.PutUint16(buf[11:13], p.CRC16)
	return buf
}

// DecodeAudioStart parses a 13-byte AUDIO_START payload. Unknown codec
// ids are preserved rather than rejected.
func DecodeAudioStart(data []byte) (*AudioStartPayload, error) {
	if len(data) < StartPayloadSize {
		return nil, fmt.Errorf("audio start payload too short: expected %d bytes, got %d: %w",
			StartPayloadSize, len(data), ErrTruncatedPayload)
	}

	return &AudioStartPayload{
		TotalFrags: binary.LittleEndian.Uint16(data[0:2]),
		CodecID:    Codec(data[2]),
		SampleHz:   binary.LittleEndian.Uint16(data[3:5]),
		DurationMs: binary.LittleEndian.Uint16(data[5:7]),
		TotalSize:  binary.LittleEndian.Uint32(data[7:11]),
		CRC16:      binary.LittleEndian.Uint16(data[11:13]),
	}, nil
}

// AudioEndPayload closes a transfer
// Layout (7 bytes): [frag_count:2 LE][crc32:4 LE][reserved:1]
type AudioEndPayload struct {
	FragCount uint16 // Data fragments actually sent (== the END seq_num)
	CRC32     uint32 // CRC-32 of the full original buffer
	Reserved  uint8  // Always 0 on encode, advisory on decode
}

// Encode serializes the payload into exactly EndPayloadSize bytes.
// The reserved byte is forced to zero.
func (p *AudioEndPayload) Encode() []byte {
	buf := make([]byte, EndPayloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.FragCount)
	binary.LittleEndian.PutUint32(buf[2:6], p.CRC32)
	buf[6] = 0
	return buf
}

// DecodeAudioEnd parses a 7-byte AUDIO_END payload.
func DecodeAudioEnd(data []byte) (*AudioEndPayload, error) {
	if len(data) < EndPayloadSize {
		return nil, fmt.Errorf("audio end payload too short: expected %d bytes, got %d: %w",
			EndPayloadSize, len(data), ErrTruncatedPayload)
	}

	return &AudioEndPayload{
		FragCount: binary.LittleEndian.Uint16(data[0:2]),
		CRC32:     binary.LittleEndian.Uint32(data[2:6]),
		Reserved:  data[6],
	}, nil
}

// AckPayload acknowledges a received sequence number
// Layout (3 bytes): [ack_seq:2 LE][status:1]
type AckPayload struct {
	AckSeq uint16    // Sequence number being acknowledged
	Status AckStatus // AckOK, AckCRCError or AckMissing
}

// Encode serializes the payload into exactly AckPayloadSize bytes.
func (p *AckPayload) Encode() []byte {
	buf := make([]byte, AckPayloadSize)
	binary.LittleEndian.PutUint16(buf[0:2], p.AckSeq)
	buf[2] = uint8(p.Status)
	return buf
}

// DecodeAck parses a 3-byte ACK payload. Unknown status codes are
// preserved rather than rejected.
func DecodeAck(data []byte) (*AckPayload, error) {
	if len(data) < AckPayloadSize {
		return nil, fmt.Errorf("ack payload too short: expected %d bytes, got %d: %w",
			AckPayloadSize, len(data), ErrTruncatedPayload)
	}

	return &AckPayload{
		AckSeq: binary.LittleEndian.Uint16(data[0:2]),
		Status: AckStatus(data[2]),
	}, nil
}

// String returns a human-readable representation of the start payload.
func (p *AudioStartPayload) String() string {
	return fmt.Sprintf("AudioStart{Frags:%d, Codec:%s, SampleHz:%d, DurationMs:%d, Size:%d, CRC16:0x%04X}",
		p.TotalFrags, p.CodecID, p.SampleHz, p.DurationMs, p.TotalSize, p.CRC16)
}

// String returns a human-readable representation of the end payload.
func (p *AudioEndPayload) String() string {
	return fmt.Sprintf("AudioEnd{Frags:%d, CRC32:0x%08X}", p.FragCount, p.CRC32)
}

// String returns a human-readable representation of the ack payload.
func (p *AckPayload) String() string {
	return fmt.Sprintf("Ack{Seq:%d, Status:%s}", p.AckSeq, p.Status)
}
