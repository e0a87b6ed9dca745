package internaldefs

import (
	netapi "github.com/MrEthical07/netapi"
)

// CounterDef names one exported dispatch counter.
type CounterDef struct {
	ID   netapi.MetricID
	Name string
	Help string
}

// HistogramDef names one exported latency histogram.
type HistogramDef struct {
	ID   netapi.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: netapi.MetricDispatchTotal, Name: "netapi_dispatch_total", Help: "Requests that reached the dispatcher."},
	{ID: netapi.MetricDispatchSuccess, Name: "netapi_dispatch_success_total", Help: "Requests answered with a payload or download."},
	{ID: netapi.MetricRoutingError, Name: "netapi_routing_error_total", Help: "Requests with a malformed dispatch path."},
	{ID: netapi.MetricUnknownEndpoint, Name: "netapi_unknown_endpoint_total", Help: "Requests naming a missing or unexposed operation."},
	{ID: netapi.MetricParametersError, Name: "netapi_parameters_error_total", Help: "Requests whose parameters could not be bound."},
	{ID: netapi.MetricInvalidPropertyFormat, Name: "netapi_invalid_property_format_total", Help: "Requests whose arguments failed validation."},
	{ID: netapi.MetricNotAllowed, Name: "netapi_not_allowed_total", Help: "Requests refused by the security check."},
	{ID: netapi.MetricInstantiationError, Name: "netapi_instantiation_error_total", Help: "Handlers that could not be constructed."},
	{ID: netapi.MetricApplicationError, Name: "netapi_application_error_total", Help: "Operations that returned an error or panicked."},
	{ID: netapi.MetricSerializationError, Name: "netapi_serialization_error_total", Help: "Results that could not be serialized."},
	{ID: netapi.MetricIOError, Name: "netapi_io_error_total", Help: "Transport and session store failures."},
	{ID: netapi.MetricIncompatibleInterface, Name: "netapi_incompatible_interface_total", Help: "Login operations that did not return a profile."},
	{ID: netapi.MetricLoginSuccess, Name: "netapi_login_success_total", Help: "Login operations that attached a profile."},
	{ID: netapi.MetricLoginRateLimited, Name: "netapi_login_rate_limited_total", Help: "Login calls refused by the failed-login throttle."},
	{ID: netapi.MetricLogout, Name: "netapi_logout_total", Help: "Logout operations."},
	{ID: netapi.MetricSessionCreated, Name: "netapi_session_created_total", Help: "Sessions persisted for the first time."},
	{ID: netapi.MetricDownload, Name: "netapi_download_total", Help: "Streamed downloads."},
}

// HistogramDefs lists the exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: netapi.MetricDispatchLatency, Name: "netapi_dispatch_latency_seconds", Help: "Dispatch latency histogram."},
}

// HistogramBounds are the finite bucket upper bounds in seconds, matching
// netapi.HistogramBounds. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// OutcomeDef maps a dispatch outcome label onto the counter that tracks it.
type OutcomeDef struct {
	ID      netapi.MetricID
	Outcome string
}

// OutcomeDefs lists the terminal outcome of a dispatch: success or one error
// code. Their values sum to netapi_dispatch_total once requests settle.
var OutcomeDefs = []OutcomeDef{
	{ID: netapi.MetricDispatchSuccess, Outcome: "success"},
	{ID: netapi.MetricRoutingError, Outcome: string(netapi.CodeRoutingError)},
	{ID: netapi.MetricUnknownEndpoint, Outcome: string(netapi.CodeUnknownEndpoint)},
	{ID: netapi.MetricParametersError, Outcome: string(netapi.CodeParametersError)},
	{ID: netapi.MetricInvalidPropertyFormat, Outcome: string(netapi.CodeInvalidPropertyFormat)},
	{ID: netapi.MetricNotAllowed, Outcome: string(netapi.CodeNotAllowed)},
	{ID: netapi.MetricInstantiationError, Outcome: string(netapi.CodeInstantiationError)},
	{ID: netapi.MetricApplicationError, Outcome: string(netapi.CodeApplicationError)},
	{ID: netapi.MetricSerializationError, Outcome: string(netapi.CodeSerializationError)},
	{ID: netapi.MetricIOError, Outcome: string(netapi.CodeIOError)},
	{ID: netapi.MetricIncompatibleInterface, Outcome: string(netapi.CodeIncompatibleInterface)},
}

// SessionEventDefs labels the session lifecycle counters.
var SessionEventDefs = []OutcomeDef{
	{ID: netapi.MetricSessionCreated, Outcome: "created"},
	{ID: netapi.MetricLoginSuccess, Outcome: "login"},
	{ID: netapi.MetricLoginRateLimited, Outcome: "login_rate_limited"},
	{ID: netapi.MetricLogout, Outcome: "logout"},
}

// HistogramBoundLabels are the "le" labels of each bucket, +Inf included.
var HistogramBoundLabels = []string{"0.005", "0.01", "0.025", "0.05", "0.1", "0.25", "0.5", "+Inf"}
