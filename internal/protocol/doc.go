// Package protocol implements the binary wire format of the LoRa audio
// transfer protocol: the 10-byte packet header and the fixed-size
// AUDIO_START, AUDIO_END and ACK payloads.
package protocol
