// Package transcript holds the per-call transcript state: an append-only
// list of finalized utterances plus a single replaceable partial hypothesis.
package transcript
