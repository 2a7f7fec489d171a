package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GrahamLi/TDDC/internal/model"
)

// FailureReason says why a job ended in failure.
type FailureReason string

const (
	// ReasonTransient: the fetch client exhausted its retry budget.
	ReasonTransient FailureReason = "transient"
	// ReasonPermanent: the source rejected the request; retrying cannot help.
	ReasonPermanent FailureReason = "permanent"
	// ReasonDeadlineExceeded: the run deadline elapsed before the job finished.
	ReasonDeadlineExceeded FailureReason = "deadline_exceeded"
	// ReasonCanceled: the run was canceled by the caller.
	ReasonCanceled FailureReason = "canceled"
	// ReasonStoreIO: the store failed to read or persist for this job.
	ReasonStoreIO FailureReason = "store_io"
)

// Failure records one unresolved date. Re-running the scheduler will
// pick these dates up again (except permanent ones, which fail the
// same way until the source changes).
type Failure struct {
	Date   model.Date    `json:"date"`
	Reason FailureReason `json:"reason"`
	Detail string        `json:"detail,omitempty"`
}

// SecurityReport summarizes one security's outcomes within a run.
type SecurityReport struct {
	Fetched         []model.Date `json:"fetched,omitempty"`
	NoData          []model.Date `json:"no_data,omitempty"`
	Failed          []Failure    `json:"failed,omitempty"`
	SkippedExisting int          `json:"skipped_existing,omitempty"`
}

// Report is the per-run summary handed back to the caller. It is never
// persisted. Accumulation is goroutine-safe; reading the maps is safe
// once Run has returned.
type Report struct {
	RunID    uuid.UUID `json:"run_id"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`

	mu         sync.Mutex
	Securities map[model.SecurityID]*SecurityReport `json:"securities"`
}

func newReport() *Report {
	return &Report{
		RunID:      uuid.New(),
		Started:    time.Now(),
		Securities: make(map[model.SecurityID]*SecurityReport),
	}
}

// security returns the (locked) entry for id, creating it if needed.
// Callers must hold r.mu.
func (r *Report) security(id model.SecurityID) *SecurityReport {
	sr, ok := r.Securities[id]
	if !ok {
		sr = &SecurityReport{}
		r.Securities[id] = sr
	}
	return sr
}

func (r *Report) addFetched(id model.SecurityID, date model.Date) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr := r.security(id)
	sr.Fetched = append(sr.Fetched, date)
}

func (r *Report) addNoData(id model.SecurityID, date model.Date) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr := r.security(id)
	sr.NoData = append(sr.NoData, date)
}

func (r *Report) addFailure(id model.SecurityID, date model.Date, reason FailureReason, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr := r.security(id)
	sr.Failed = append(sr.Failed, Failure{Date: date, Reason: reason, Detail: detail})
}

func (r *Report) addSkipped(id model.SecurityID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr := r.security(id)
	sr.SkippedExisting += n
}

// Totals sums outcomes across all securities.
func (r *Report) Totals() (fetched, noData, failed, skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sr := range r.Securities {
		fetched += len(sr.Fetched)
		noData += len(sr.NoData)
		failed += len(sr.Failed)
		skipped += sr.SkippedExisting
	}
	return fetched, noData, failed, skipped
}

// FailedDates returns every unresolved date for the security, useful
// for operators deciding whether a re-run is worthwhile.
func (r *Report) FailedDates(id model.SecurityID) []Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr, ok := r.Securities[id]
	if !ok {
		return nil
	}
	return append([]Failure(nil), sr.Failed...)
}
