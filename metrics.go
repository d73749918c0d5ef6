package authstack

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one engine counter.
type MetricID int

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricRegister
	MetricOTPIssued
	MetricOTPVerified
	MetricOTPRejected
	MetricOTPRateLimited
	MetricOAuthLogin
	MetricOAuthRejected
	MetricRefreshSuccess
	MetricRefreshRejected
	MetricLogout
	MetricValidateSuccess
	MetricValidateFailure
	MetricAuditDropped
	metricCount
)

var metricNames = [metricCount]string{
	MetricLoginSuccess:    "login_success",
	MetricLoginFailure:    "login_failure",
	MetricRegister:        "register",
	MetricOTPIssued:       "otp_issued",
	MetricOTPVerified:     "otp_verified",
	MetricOTPRejected:     "otp_rejected",
	MetricOTPRateLimited:  "otp_rate_limited",
	MetricOAuthLogin:      "oauth_login",
	MetricOAuthRejected:   "oauth_rejected",
	MetricRefreshSuccess:  "refresh_success",
	MetricRefreshRejected: "refresh_rejected",
	MetricLogout:          "logout",
	MetricValidateSuccess: "validate_success",
	MetricValidateFailure: "validate_failure",
	MetricAuditDropped:    "audit_dropped",
}

// String returns the metric's export name.
func (id MetricID) String() string {
	if id < 0 || id >= metricCount {
		return "unknown"
	}
	return metricNames[id]
}

// MetricIDs returns all counter IDs in export order.
func MetricIDs() []MetricID {
	out := make([]MetricID, metricCount)
	for i := range out {
		out[i] = MetricID(i)
	}
	return out
}

// paddedCounter occupies its own cache line so hot counters on different
// cores do not false-share.
type paddedCounter struct {
	v atomic.Uint64
	_ [56]byte
}

// validateBuckets are the upper bounds, in microseconds, of the token
// validation latency histogram.
var validateBuckets = [...]uint64{50, 100, 250, 500, 1000, 5000, 25000}

// Metrics holds the engine's in-process counters. All methods are safe for
// concurrent use and nil-receiver safe, so disabled metrics cost one branch.
type Metrics struct {
	counters   [metricCount]paddedCounter
	histogram  [len(validateBuckets) + 1]paddedCounter
	histoTotal atomic.Uint64
	histoSum   atomic.Uint64 // microseconds
}

func newMetrics() *Metrics { return &Metrics{} }

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id < 0 || id >= metricCount {
		return
	}
	m.counters[id].v.Add(1)
}

// Get returns the current value of the counter.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= metricCount {
		return 0
	}
	return m.counters[id].v.Load()
}

// ObserveValidate records one token validation latency.
func (m *Metrics) ObserveValidate(d time.Duration) {
	if m == nil {
		return
	}
	us := uint64(d.Microseconds())
	idx := len(validateBuckets)
	for i, ub := range validateBuckets {
		if us <= ub {
			idx = i
			break
		}
	}
	m.histogram[idx].v.Add(1)
	m.histoTotal.Add(1)
	m.histoSum.Add(us)
}

// HistogramSnapshot is a point-in-time copy of the validation latency
// histogram. Buckets are cumulative, Prometheus style.
type HistogramSnapshot struct {
	UpperBoundsMicros []uint64
	CumulativeCounts  []uint64
	Count             uint64
	SumMicros         uint64
}

// Snapshot returns a point-in-time copy of every counter keyed by export
// name. Counters are read one by one; the snapshot is not atomic across
// metrics.
func (m *Metrics) Snapshot() map[string]uint64 {
	out := make(map[string]uint64, metricCount)
	if m == nil {
		return out
	}
	for i := MetricID(0); i < metricCount; i++ {
		out[metricNames[i]] = m.counters[i].v.Load()
	}
	return out
}

// ValidateLatency returns the latency histogram.
func (m *Metrics) ValidateLatency() HistogramSnapshot {
	snap := HistogramSnapshot{
		UpperBoundsMicros: append([]uint64(nil), validateBuckets[:]...),
		CumulativeCounts:  make([]uint64, len(validateBuckets)+1),
	}
	if m == nil {
		return snap
	}
	var cum uint64
	for i := range m.histogram {
		cum += m.histogram[i].v.Load()
		snap.CumulativeCounts[i] = cum
	}
	snap.Count = m.histoTotal.Load()
	snap.SumMicros = m.histoSum.Load()
	return snap
}
