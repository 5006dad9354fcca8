package transfer

import (
	"bytes"
	"errors"
	"testing"

	"github.com/brewern5/LoRa-Research/internal/checksum"
	"github.com/brewern5/LoRa-Research/internal/protocol"
)

func testParams() Params {
	return Params{
		Codec:      protocol.CodecRawPCM,
		SampleHz:   16000,
		DurationMs: 1000,
		SrcID:      0x01,
		DstID:      0x02,
		ExpID:      1,
		SessionID:  0x0042,
		TxPow:      14,
		SF:         7,
		CR:         5,
	}
}

func decodeStart(t *testing.T, pkt protocol.Packet) *protocol.AudioStartPayload {
	t.Helper()
	start, err := protocol.DecodeAudioStart(pkt.Payload)
	if err != nil {
		t.Fatalf("failed to decode start payload: %v", err)
	}
	return start
}

func decodeEnd(t *testing.T, pkt protocol.Packet) *protocol.AudioEndPayload {
	t.Helper()
	end, err := protocol.DecodeAudioEnd(pkt.Payload)
	if err != nil {
		t.Fatalf("failed to decode end payload: %v", err)
	}
	return end
}

func TestBuildFragmentCounts(t *testing.T) {
	tests := []struct {
		name          string
		bufSize       int
		expectedFrags int
	}{
		{name: "empty buffer", bufSize: 0, expectedFrags: 0},
		{name: "one byte", bufSize: 1, expectedFrags: 1},
		{name: "exactly one fragment", bufSize: 245, expectedFrags: 1},
		{name: "one byte over", bufSize: 246, expectedFrags: 2},
		{name: "32000 byte raw pcm", bufSize: 32000, expectedFrags: 131},
		{name: "3200 byte compressed", bufSize: 3200, expectedFrags: 14},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packets, err := Build(RampPCM(tt.bufSize), testParams())
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}

			if got := len(packets); got != tt.expectedFrags+2 {
				t.Errorf("total packets = %d, expected %d", got, tt.expectedFrags+2)
			}

			start := decodeStart(t, packets[0])
			if int(start.TotalFrags) != tt.expectedFrags {
				t.Errorf("start total_frags = %d, expected %d", start.TotalFrags, tt.expectedFrags)
			}
			if int(start.TotalSize) != tt.bufSize {
				t.Errorf("start total_size = %d, expected %d", start.TotalSize, tt.bufSize)
			}

			end := decodeEnd(t, packets[len(packets)-1])
			if int(end.FragCount) != tt.expectedFrags {
				t.Errorf("end frag_count = %d, expected %d", end.FragCount, tt.expectedFrags)
			}
		})
	}
}

func TestBuildPacketSequence(t *testing.T) {
	buf := RampPCM(500)
	packets, err := Build(buf, testParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	// 500 bytes => 3 fragments (245 + 245 + 10).
	if len(packets) != 5 {
		t.Fatalf("total packets = %d, expected 5", len(packets))
	}

	if packets[0].Header.Type != protocol.PacketAudioStart || packets[0].Header.SeqNum != 0 {
		t.Errorf("first packet is not START with seq 0: %+v", packets[0].Header)
	}

	for i, pkt := range packets[1 : len(packets)-1] {
		if pkt.Header.Type != protocol.PacketAudioData {
			t.Errorf("packet %d type = %s, expected AUDIO_DATA", i+1, pkt.Header.Type)
		}
		if int(pkt.Header.SeqNum) != i {
			t.Errorf("data packet %d seq = %d, expected %d", i+1, pkt.Header.SeqNum, i)
		}
		if pkt.Size() > protocol.MaxPacketSize {
			t.Errorf("packet %d size %d exceeds max %d", i+1, pkt.Size(), protocol.MaxPacketSize)
		}
	}

	last := packets[len(packets)-1]
	if last.Header.Type != protocol.PacketAudioEnd {
		t.Errorf("last packet type = %s, expected AUDIO_END", last.Header.Type)
	}
	if last.Header.SeqNum != 3 {
		t.Errorf("end seq = %d, expected 3 (one past last data index)", last.Header.SeqNum)
	}

	// Final fragment carries only the remainder, no padding.
	if got := len(packets[3].Payload); got != 10 {
		t.Errorf("last fragment payload = %d bytes, expected 10", got)
	}

	// Every packet carries the session addressing.
	for i, pkt := range packets {
		h := pkt.Header
		if h.SrcID != 0x01 || h.DstID != 0x02 || h.ExpID != 1 || h.SessionID != 0x0042 {
			t.Errorf("packet %d addressing mismatch: %+v", i, h)
		}
		if h.TxPow != 14 || h.SF != 7 || h.CR != 5 {
			t.Errorf("packet %d radio params mismatch: %+v", i, h)
		}
	}
}

func TestBuildChecksums(t *testing.T) {
	buf := RampPCM(32000)
	packets, err := Build(buf, testParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	start := decodeStart(t, packets[0])
	if start.CRC16 != checksum.CRC16(buf) {
		t.Errorf("start crc16 = 0x%04X, expected 0x%04X", start.CRC16, checksum.CRC16(buf))
	}

	end := decodeEnd(t, packets[len(packets)-1])
	if end.CRC32 != checksum.CRC32(buf) {
		t.Errorf("end crc32 = 0x%08X, expected 0x%08X", end.CRC32, checksum.CRC32(buf))
	}
}

func TestBuildEmptyBuffer(t *testing.T) {
	packets, err := Build(nil, testParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if len(packets) != 2 {
		t.Fatalf("total packets = %d, expected START + END only", len(packets))
	}
	if packets[0].Header.Type != protocol.PacketAudioStart {
		t.Errorf("first packet type = %s", packets[0].Header.Type)
	}
	if packets[1].Header.Type != protocol.PacketAudioEnd || packets[1].Header.SeqNum != 0 {
		t.Errorf("end packet mismatch: %+v", packets[1].Header)
	}
}

func TestReassembleRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 244, 245, 246, 500, 3200, 32000} {
		buf := RampPCM(size)
		packets, err := Build(buf, testParams())
		if err != nil {
			t.Fatalf("Build(%d) failed: %v", size, err)
		}

		start := decodeStart(t, packets[0])
		end := decodeEnd(t, packets[len(packets)-1])

		assembled, err := Reassemble(DataPackets(packets), start, end)
		if err != nil {
			t.Fatalf("Reassemble(%d) failed: %v", size, err)
		}
		if !bytes.Equal(assembled, buf) {
			t.Errorf("Reassemble(%d) does not match original buffer", size)
		}
		if checksum.CRC32(assembled) != end.CRC32 {
			t.Errorf("Reassemble(%d) crc32 mismatch against END payload", size)
		}
	}
}

func TestReassembleOutOfOrderAndDuplicates(t *testing.T) {
	buf := RampPCM(1000)
	packets, err := Build(buf, testParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	start := decodeStart(t, packets[0])
	end := decodeEnd(t, packets[len(packets)-1])
	data := DataPackets(packets)

	// Shuffle deterministically and duplicate one fragment.
	shuffled := []protocol.Packet{data[3], data[0], data[4], data[1], data[1], data[2]}

	assembled, err := Reassemble(shuffled, start, end)
	if err != nil {
		t.Fatalf("Reassemble failed: %v", err)
	}
	if !bytes.Equal(assembled, buf) {
		t.Error("reassembled buffer does not match original after shuffle")
	}
}

func TestReassembleMissingFragment(t *testing.T) {
	buf := RampPCM(1000)
	packets, err := Build(buf, testParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	start := decodeStart(t, packets[0])
	end := decodeEnd(t, packets[len(packets)-1])
	data := DataPackets(packets)

	// Drop fragment seq=2.
	incomplete := append([]protocol.Packet{}, data[:2]...)
	incomplete = append(incomplete, data[3:]...)

	_, err = Reassemble(incomplete, start, end)
	if !errors.Is(err, ErrIncompleteTransfer) {
		t.Errorf("expected ErrIncompleteTransfer, got %v", err)
	}
}

func TestReassembleCorruptedFragment(t *testing.T) {
	buf := RampPCM(1000)
	packets, err := Build(buf, testParams())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	start := decodeStart(t, packets[0])
	end := decodeEnd(t, packets[len(packets)-1])
	data := DataPackets(packets)

	data[1].Payload[17] ^= 0xFF

	assembled, err := Reassemble(data, start, end)
	if !errors.Is(err, ErrIntegrityFailure) {
		t.Fatalf("expected ErrIntegrityFailure, got %v", err)
	}
	if assembled == nil {
		t.Error("assembled bytes should still be returned on integrity failure")
	}
}

func TestRampPCM(t *testing.T) {
	buf := RampPCM(512)
	if len(buf) != 512 {
		t.Fatalf("length = %d, expected 512", len(buf))
	}
	for i, b := range buf {
		if b != byte(i%256) {
			t.Fatalf("byte %d = 0x%02X, expected 0x%02X", i, b, byte(i%256))
		}
	}
}
