// Package audio provides WAV container encoding and decoding for the 16-bit
// mono PCM buffers moved by the transfer engine, so simulated transfers can
// read from and write to ordinary audio files.
package audio
