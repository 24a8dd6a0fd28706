// Package booking turns appointment requests into Google Calendar events
// and mirrors the outcome to the call's activity feed.
package booking
