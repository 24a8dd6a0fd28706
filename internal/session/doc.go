// Package session owns the lifecycle of live calls: it assembles the audio
// pipeline for each connection, routes media events through recognition and
// enrichment, and guarantees engine capacity is released on every
// termination path.
package session
