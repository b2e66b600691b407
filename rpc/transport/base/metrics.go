package base

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// serverMetrics are the prometheus series of one server transport type
type serverMetrics struct {
	connections  *metrics.Counter
	accepted     *metrics.Counter
	bytesRead    *metrics.Counter
	bytesWritten *metrics.Counter
	requests     *metrics.Counter
	malformed    *metrics.Counter
	oversized    *metrics.Counter
	released     *metrics.Counter
	writeErrors  *metrics.Counter
	duration     *metrics.Histogram
}

// newServerMetrics returns the series labeled with the transport name.
// Transports of the same type share their series.
func newServerMetrics(transport string) *serverMetrics {
	name := func(metric string) string {
		return fmt.Sprintf(`glide_server_%s{transport=%q}`, metric, transport)
	}

	return &serverMetrics{
		connections:  metrics.GetOrCreateCounter(name("open_connections")),
		accepted:     metrics.GetOrCreateCounter(name("accepted_connections_total")),
		bytesRead:    metrics.GetOrCreateCounter(name("read_bytes_total")),
		bytesWritten: metrics.GetOrCreateCounter(name("written_bytes_total")),
		requests:     metrics.GetOrCreateCounter(name("requests_total")),
		malformed:    metrics.GetOrCreateCounter(name("malformed_frames_total")),
		oversized:    metrics.GetOrCreateCounter(name("oversized_connections_total")),
		released:     metrics.GetOrCreateCounter(name("released_handles_total")),
		writeErrors:  metrics.GetOrCreateCounter(name("write_errors_total")),
		duration:     metrics.GetOrCreateHistogram(name("request_duration_seconds")),
	}
}

// clientMetrics are the prometheus series of one client transport type
type clientMetrics struct {
	requests *metrics.Counter
	retries  *metrics.Counter
	failures *metrics.Counter
	orphaned *metrics.Counter
	duration *metrics.Histogram
}

func newClientMetrics(transport string) *clientMetrics {
	name := func(metric string) string {
		return fmt.Sprintf(`glide_client_%s{transport=%q}`, metric, transport)
	}

	return &clientMetrics{
		requests: metrics.GetOrCreateCounter(name("requests_total")),
		retries:  metrics.GetOrCreateCounter(name("retries_total")),
		failures: metrics.GetOrCreateCounter(name("failed_requests_total")),
		orphaned: metrics.GetOrCreateCounter(name("orphaned_responses_total")),
		duration: metrics.GetOrCreateHistogram(name("request_duration_seconds")),
	}
}
