// Package enrich turns transcript snapshots into structured AI summary
// cards and throttles how often the model is consulted per call.
package enrich
