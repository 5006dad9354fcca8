// Package transfer maps audio buffers to ordered LoRa packet sequences
// and reassembles received data fragments back into the original buffer.
package transfer
