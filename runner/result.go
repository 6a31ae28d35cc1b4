package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/lightci/standalone-runner/discovery"
)

// Status labels a discovered test in the final report.
type Status string

const (
	// StatusRan means a child process was launched for the test, regardless
	// of its exit code.
	StatusRan Status = "ran"
	// StatusSkipped means the test matched the blocklist and was never launched.
	StatusSkipped Status = "skipped"
)

// ExecutionRecord is the report entry for one discovered test. Exactly one
// record exists per discovered identifier. ExitCode stays nil until process
// completion is observed and is never mutated afterwards.
type ExecutionRecord struct {
	ID       discovery.TestID
	Status   Status
	ExitCode *int
}

// Failed reports whether the test ran and exited non-zero.
func (r ExecutionRecord) Failed() bool {
	return r.Status == StatusRan && r.ExitCode != nil && *r.ExitCode != 0
}

// Stats aggregates record counts for one run.
type Stats struct {
	Total   int
	Ran     int
	Skipped int
	Failed  int
}

// Result captures the complete run: one ExecutionRecord per discovered test.
// Records are appended at filter time (skips) or dispatch time (ran) and exit
// codes are filled in concurrently by the join goroutines, so access is
// mutex-guarded. Reports come back in discovery order once SetDiscoveryOrder
// has fixed the sequence; otherwise insertion order applies.
type Result struct {
	RunID string

	mu       sync.Mutex
	records  []*ExecutionRecord
	index    map[discovery.TestID]*ExecutionRecord
	rank     map[discovery.TestID]int
	duration time.Duration
}

func NewResult(runID string) *Result {
	return &Result{
		RunID: runID,
		index: make(map[discovery.TestID]*ExecutionRecord),
	}
}

// SetDiscoveryOrder fixes the report order for the run: Records returns
// entries in the given sequence regardless of when they were appended. Skips
// are recorded during filtering but dispatches only as batches launch, so
// insertion order alone would interleave them wrongly.
func (r *Result) SetDiscoveryOrder(ids []discovery.TestID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rank = make(map[discovery.TestID]int, len(ids))
	for i, id := range ids {
		r.rank[id] = i
	}
}

// RecordSkipped appends a Skipped record for id.
func (r *Result) RecordSkipped(id discovery.TestID) {
	r.append(&ExecutionRecord{ID: id, Status: StatusSkipped})
}

// RecordRan appends a Ran record for id at dispatch time.
func (r *Result) RecordRan(id discovery.TestID) {
	r.append(&ExecutionRecord{ID: id, Status: StatusRan})
}

func (r *Result) append(rec *ExecutionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	r.index[rec.ID] = rec
}

// SetExitCode records the observed exit code for a ran test.
func (r *Result) SetExitCode(id discovery.TestID, code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.index[id]; ok && rec.ExitCode == nil {
		c := code
		rec.ExitCode = &c
	}
}

// Records returns a snapshot of all records in discovery order.
func (r *Result) Records() []ExecutionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ExecutionRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	if len(r.rank) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			ri, iok := r.rank[out[i].ID]
			rj, jok := r.rank[out[j].ID]
			if iok && jok {
				return ri < rj
			}
			// Unranked records sort after ranked ones, keeping their
			// insertion order among themselves.
			return iok
		})
	}
	return out
}

// Stats aggregates the current records.
func (r *Result) Stats() Stats {
	var s Stats
	for _, rec := range r.Records() {
		s.Total++
		switch rec.Status {
		case StatusSkipped:
			s.Skipped++
		case StatusRan:
			s.Ran++
			if rec.Failed() {
				s.Failed++
			}
		}
	}
	return s
}

// Finish stamps the total run duration.
func (r *Result) Finish(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duration = d
}

// Duration returns the stamped run duration.
func (r *Result) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.duration
}
