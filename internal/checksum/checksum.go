package checksum

import "hash/crc32"

// CRC16 computes CRC-16/CCITT-FALSE over data (polynomial 0x1021,
// initial value 0xFFFF, no reflection). It is carried in the AUDIO_START
// payload as an early integrity stamp, computed before fragmentation.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// CRC32 computes the standard zlib-compatible CRC-32 (reflected polynomial
// 0xEDB88320) over data. It is carried in the AUDIO_END payload and is the
// authoritative post-reassembly integrity check.
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}
