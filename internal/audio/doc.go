// Package audio handles inbound audio normalization and framing: G.711 μ-law
// expansion, stateful 8 kHz to 16 kHz resampling with per-session continuation
// state, and accumulation of PCM bytes into the fixed-size frames the speech
// engine consumes.
package audio
