// Package asr wraps the streaming speech recognition capability: the Engine
// interface and its Picovoice Cheetah implementation, a bounded pool gating
// concurrently open engine instances, and the frame-level adapter that turns
// endpoint signals into finalized utterance text.
package asr
