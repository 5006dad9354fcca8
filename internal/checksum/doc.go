// Package checksum implements the two integrity checksums used by the
// LoRa audio transfer protocol.
package checksum
