package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Protocol constants for the wire format
const (
	// ProtocolVersion is carried in the high nibble of every header.
	ProtocolVersion = 1

	// Packet structure sizes
	MaxPacketSize    = 255                            // SX1262 max LoRa payload (bytes)
	HeaderSize       = 10                             // Fixed header size (bytes)
	MaxDataPayload   = MaxPacketSize - HeaderSize     // 245 bytes per data fragment
	StartPayloadSize = 13                             // AudioStartPayload wire size
	EndPayloadSize   = 7                              // AudioEndPayload wire size
	AckPayloadSize   = 3                              // AckPayload wire size

	// Broadcast is the dst_id that addresses every node.
	Broadcast = 0xFF
)

// Decode errors
var (
	ErrTruncatedHeader  = errors.New("truncated header")
	ErrTruncatedPayload = errors.New("truncated payload")
	ErrVersionMismatch  = errors.New("protocol version mismatch")
)

// PacketType identifies the payload carried after the header. Unknown codes
// are preserved as-is so forward-compatible or corrupted streams can still
// be inspected.
type PacketType uint8

const (
	PacketAudioStart PacketType = 0x01
	PacketAudioData  PacketType = 0x02
	PacketAudioEnd   PacketType = 0x03
	PacketAck        PacketType = 0x04
)

// Known reports whether t is one of the defined packet types.
func (t PacketType) Known() bool {
	return t >= PacketAudioStart && t <= PacketAck
}

// String returns the protocol name of the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketAudioStart:
		return "AUDIO_START"
	case PacketAudioData:
		return "AUDIO_DATA"
	case PacketAudioEnd:
		return "AUDIO_END"
	case PacketAck:
		return "ACK"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(t))
	}
}

// Codec identifies the audio encoding declared in an AUDIO_START payload.
type Codec uint8

const (
	CodecRawPCM     Codec = 0x00
	CodecCompressed Codec = 0x01
)

// Known reports whether c is one of the defined codec ids.
func (c Codec) Known() bool {
	return c == CodecRawPCM || c == CodecCompressed
}

// String returns the human-readable codec name.
func (c Codec) String() string {
	switch c {
	case CodecRawPCM:
		return "Raw PCM"
	case CodecCompressed:
		return "Compressed"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(c))
	}
}

// AckStatus is the result code carried in an ACK payload.
type AckStatus uint8

const (
	AckOK       AckStatus = 0x00
	AckCRCError AckStatus = 0x01
	AckMissing  AckStatus = 0x02
)

// String returns the human-readable ACK status name.
func (s AckStatus) String() string {
	switch s {
	case AckOK:
		return "OK"
	case AckCRCError:
		return "CRC_ERR"
	case AckMissing:
		return "MISSING"
	default:
		return fmt.Sprintf("Unknown(0x%02X)", uint8(s))
	}
}

// Header represents the 10-byte packet header
// Layout: [ver_type:1][src_id:1][dst_id:1][exp_id:1][session_id:2 LE]
// [seq_num:2 LE][tx_pow:1][sf_cr:1]
type Header struct {
	Version   uint8      // Protocol version (high nibble of byte 0)
	Type      PacketType // Packet type (low nibble of byte 0)
	SrcID     uint8      // Source node ID
	DstID     uint8      // Destination node ID (0xFF = broadcast)
	ExpID     uint8      // Experiment run ID
	SessionID uint16     // Groups all packets of one transfer
	SeqNum    uint16     // Fragment index within the session
	TxPow     uint8      // TX power in dBm
	SF        uint8      // Spreading factor (high nibble of byte 9)
	CR        uint8      // Coding rate (low nibble of byte 9)
}

// EncodeHeader serializes the header into exactly HeaderSize bytes.
// The version nibble is always written as ProtocolVersion regardless of
// the Version field.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = (ProtocolVersion&0x0F)<<4 | uint8(h.Type)&0x0F
	buf[1] = h.SrcID
	buf[2] = h.DstID
	buf[3] = h.ExpID
	binary.LittleEndian.PutUint16(buf[4:6], h.SessionID)
	binary.LittleEndian.PutUint16(buf[6:8], h.SeqNum)
	buf[8] = h.TxPow
	buf[9] = (h.SF&0x0F)<<4 | h.CR&0x0F
	return buf
}

// DecodeHeader parses a 10-byte packet header. The version nibble must
// equal ProtocolVersion; the packet type is preserved even when unknown.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("header too short: expected %d bytes, got %d: %w",
			HeaderSize, len(data), ErrTruncatedHeader)
	}

	version := data[0] >> 4 & 0x0F
	if version != ProtocolVersion {
		return nil, fmt.Errorf("unsupported version %d (want %d): %w",
			version, ProtocolVersion, ErrVersionMismatch)
	}

	return &Header{
		Version:   version,
		Type:      PacketType(data[0] & 0x0F),
		SrcID:     data[1],
		DstID:     data[2],
		ExpID:     data[3],
		SessionID: binary.LittleEndian.Uint16(data[4:6]),
		SeqNum:    binary.LittleEndian.Uint16(data[6:8]),
		TxPow:     data[8],
		SF:        data[9] >> 4 & 0x0F,
		CR:        data[9] & 0x0F,
	}, nil
}

// Packet is a full wire packet: header plus raw payload bytes. Payload
// interpretation depends on the header type; unknown types keep their
// payload opaque.
type Packet struct {
	Header  Header
	Payload []byte
}

// Bytes serializes the packet into its wire form (header + payload).
func (p *Packet) Bytes() []byte {
	buf := make([]byte, 0, HeaderSize+len(p.Payload))
	buf = append(buf, EncodeHeader(&p.Header)...)
	buf = append(buf, p.Payload...)
	return buf
}

// Size returns the total wire size of the packet in bytes.
func (p *Packet) Size() int {
	return HeaderSize + len(p.Payload)
}

// ParsePacket splits raw wire bytes into a decoded header and its payload.
// The payload bytes are copied so the caller may reuse the input buffer.
func ParsePacket(data []byte) (*Packet, error) {
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	payload := make([]byte, len(data)-HeaderSize)
	copy(payload, data[HeaderSize:])

	return &Packet{Header: *hdr, Payload: payload}, nil
}

// String returns a human-readable representation of the header.
func (h *Header) String() string {
	return fmt.Sprintf("Header{Type:%s, Src:0x%02X, Dst:0x%02X, Exp:%d, Session:0x%04X, Seq:%d, TxPow:%d, SF:%d, CR:4/%d}",
		h.Type, h.SrcID, h.DstID, h.ExpID, h.SessionID, h.SeqNum, h.TxPow, h.SF, h.CR)
}
