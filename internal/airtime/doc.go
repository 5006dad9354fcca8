// Package airtime models LoRa time-on-air for single packets and whole
// audio transfers, following the Semtech SX1262 airtime formula.
package airtime
