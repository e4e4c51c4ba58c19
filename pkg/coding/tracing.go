package coding

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for classification operations.
const TracerName = "gendercode/coding"

// Span names
const (
	SpanClassifyBatch = "gendercode.classify_batch"
)

// Span attribute keys
const (
	AttrBatchID   = "batch_id"
	AttrBatchSize = "batch_size"
	AttrWorkers   = "workers"
	AttrUnknown   = "unknown_count"
)

func defaultTracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
