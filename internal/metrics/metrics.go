// Package metrics centralizes the process-wide go-metrics registry and the
// counters/meters this node's transport and routing layers update.
// QueryReceived is registered but nothing in this module marks it.
package metrics

import "github.com/rcrowley/go-metrics"

var reg = metrics.NewRegistry()

var (
	QuerySent     = metrics.NewRegisteredMeter("query/sent", reg)
	QueryReceived = metrics.NewRegisteredMeter("query/received", reg)
	QueryErrored  = metrics.NewRegisteredMeter("query/errored", reg)
	QueryTimeout  = metrics.NewRegisteredMeter("query/timeout", reg)

	PingSent           = metrics.NewRegisteredMeter("query/ping/sent", reg)
	FindNodeSent       = metrics.NewRegisteredMeter("query/find_node/sent", reg)
	GetPeersSent       = metrics.NewRegisteredMeter("query/get_peers/sent", reg)
	AnnouncePeerSent   = metrics.NewRegisteredMeter("query/announce_peer/sent", reg)
	SampleInfoHashSent = metrics.NewRegisteredMeter("query/sample_infohashes/sent", reg)

	ResponseLatency = metrics.NewRegisteredTimer("query/response/latency", reg)

	BucketSplits        = metrics.NewRegisteredMeter("routing/bucket/split", reg)
	BucketEvictBad      = metrics.NewRegisteredMeter("routing/bucket/evict/bad", reg)
	BucketEvictQuestion = metrics.NewRegisteredMeter("routing/bucket/evict/questionable", reg)
)

// Registry returns the process-wide metrics registry, for a dashboard or
// reporter to range over.
func Registry() metrics.Registry { return reg }

// MarkQuerySent records an outbound query of the given method name.
func MarkQuerySent(method string) {
	QuerySent.Mark(1)
	switch method {
	case "ping":
		PingSent.Mark(1)
	case "find_node":
		FindNodeSent.Mark(1)
	case "get_peers":
		GetPeersSent.Mark(1)
	case "announce_peer":
		AnnouncePeerSent.Mark(1)
	case "sample_infohashes":
		SampleInfoHashSent.Mark(1)
	}
}
