package internaldefs

import (
	"strconv"

	"github.com/MrEthical07/sessionauth"
)

// Namespace prefixes every exported metric name.
const Namespace = "sessionauth"

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   sessionauth.MetricID
	Name string
	Help string
}

var counterHelp = map[sessionauth.MetricID]string{
	sessionauth.MetricLoginSuccess:         "Successful logins.",
	sessionauth.MetricLoginFailure:         "Failed logins, including validation and backend failures.",
	sessionauth.MetricLoginRateLimited:     "Logins rejected by the per-identifier throttle.",
	sessionauth.MetricPasswordUpgraded:     "Password hashes rewritten with current parameters after login.",
	sessionauth.MetricRegisterSuccess:      "Successful registrations.",
	sessionauth.MetricRegisterDuplicate:    "Registrations rejected for an email already in use.",
	sessionauth.MetricRegisterFailure:      "Failed registrations other than duplicates.",
	sessionauth.MetricSessionCreated:       "Sessions written to the store.",
	sessionauth.MetricSessionCreateFailure: "Session writes that failed.",
	sessionauth.MetricLogout:               "Sessions ended by logout.",
}

// CounterDefs lists every counter in MetricID order.
var CounterDefs = buildCounterDefs()

// HistogramDefs lists the histogram-backed IDs.
var HistogramDefs = []HistogramDef{
	{ID: sessionauth.MetricLoginLatency, Name: Namespace + "_login_latency_seconds", Help: "Login latency."},
}

// Audit dispatcher counters.
const (
	AuditDroppedName = Namespace + "_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."

	AuditDeliveredName = Namespace + "_audit_delivered_total"
	AuditDeliveredHelp = "Audit events handed to the sink."

	AuditSinkPanicsName = Namespace + "_audit_sink_panics_total"
	AuditSinkPanicsHelp = "Audit events whose sink call panicked."

	// AuditEventsName carries all three as an "outcome" attribute for
	// exporters with dimensional instruments.
	AuditEventsName = Namespace + "_audit_events_total"
	AuditEventsHelp = "Audit events by dispatch outcome."
)

func buildCounterDefs() []CounterDef {
	out := make([]CounterDef, 0, len(counterHelp))
	for _, id := range sessionauth.MetricIDs() {
		help, ok := counterHelp[id]
		if !ok {
			continue
		}
		out = append(out, CounterDef{ID: id, Name: Namespace + "_" + id.String() + "_total", Help: help})
	}
	return out
}

// BucketCount is the number of histogram buckets including +Inf.
const BucketCount = len(sessionauth.HistogramBounds) + 1

// UpperBounds returns the finite bucket bounds in seconds.
func UpperBounds() []float64 {
	out := make([]float64, len(sessionauth.HistogramBounds))
	for i, d := range sessionauth.HistogramBounds {
		out[i] = d.Seconds()
	}
	return out
}

// BucketLabels returns the "le" label of each bucket, "+Inf" last.
func BucketLabels() [BucketCount]string {
	var out [BucketCount]string
	for i, b := range UpperBounds() {
		out[i] = strconv.FormatFloat(b, 'g', -1, 64)
	}
	out[BucketCount-1] = "+Inf"
	return out
}

// NormalizeBuckets copies raw into a fixed-size array, zero-filling a short
// or missing slice.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals; the last
// element is the sample count.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
