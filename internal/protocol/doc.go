// Package protocol defines the inbound media-stream event protocol: JSON
// envelopes with a discriminant field covering session start, audio media,
// and session stop. Unknown discriminants are reported as a typed error so
// callers can ignore them without tearing down the connection.
package protocol
