// Package statesink mirrors live call state into a realtime document store
// so dashboards can watch calls as they happen. Writes are best effort and
// never block or fail the audio path.
package statesink
