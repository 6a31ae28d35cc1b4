package runner

import (
	"github.com/lightci/standalone-runner/discovery"
)

// Batch execution constants
const (
	// DefaultBatchSize is the number of tests launched concurrently per batch.
	DefaultBatchSize = 6

	// MaxReasonableBatchSize caps the values we accept without a warning, to
	// avoid accelerator memory exhaustion from over-parallelized batches.
	MaxReasonableBatchSize = 32
)

// Batches partitions ids into consecutive groups of size; the final group may
// be shorter. An empty input yields zero batches. Size must be positive; the
// caller validates it at construction.
func Batches(ids []discovery.TestID, size int) [][]discovery.TestID {
	if size <= 0 {
		panic("batch size must be positive")
	}
	var out [][]discovery.TestID
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
