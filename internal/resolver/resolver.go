// Package resolver maps arbitrary query dates to the nearest date
// actually present in the snapshot store.
//
// Disclosure dates are weekly and shift around holidays, so downstream
// consumers rarely hold a date that exists verbatim. A Resolver loads
// each security's date listing once and answers any number of lookups
// against it in O(log n).
package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/GrahamLi/TDDC/internal/model"
	"github.com/GrahamLi/TDDC/internal/store"
)

// Direction selects which stored dates are acceptable.
type Direction int

const (
	// Nearest minimizes absolute day distance; ties break toward the
	// earlier date.
	Nearest Direction = iota
	// OnOrBefore returns the closest stored date not after the target.
	OnOrBefore
	// OnOrAfter returns the closest stored date not before the target.
	OnOrAfter
)

func (d Direction) String() string {
	switch d {
	case Nearest:
		return "nearest"
	case OnOrBefore:
		return "on-or-before"
	case OnOrAfter:
		return "on-or-after"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses the string forms accepted on the command line.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "nearest":
		return Nearest, nil
	case "on-or-before", "before":
		return OnOrBefore, nil
	case "on-or-after", "after":
		return OnOrAfter, nil
	default:
		return Nearest, fmt.Errorf("unknown direction %q", s)
	}
}

// ErrNoDataAvailable means the security has no stored dates, or none
// satisfying the direction constraint.
var ErrNoDataAvailable = errors.New("no stored dates satisfy the query")

// ErrOutOfTolerance means the best candidate is further from the
// target than the caller allows.
var ErrOutOfTolerance = errors.New("nearest stored date is out of tolerance")

// ToleranceError carries the rejected candidate so callers can report
// how far off it was.
type ToleranceError struct {
	Security model.SecurityID
	Target   model.Date
	Best     model.Date
	Distance int // days
	Max      int // days
}

func (e *ToleranceError) Error() string {
	return fmt.Sprintf("nearest stored date for %s is %s, %d days from %s (max %d)",
		e.Security, e.Best, e.Distance, e.Target, e.Max)
}

func (e *ToleranceError) Is(target error) bool { return target == ErrOutOfTolerance }

// Resolver answers nearest-date queries against a store. The date
// listing for each security is fetched once and cached; call
// Invalidate after ingesting new data for a security.
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	store store.Store

	mu    sync.Mutex
	index map[model.SecurityID][]model.Date
}

// New creates a Resolver over the store.
func New(st store.Store) *Resolver {
	return &Resolver{
		store: st,
		index: make(map[model.SecurityID][]model.Date),
	}
}

// Invalidate drops the cached listing for a security.
func (r *Resolver) Invalidate(security model.SecurityID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.index, security)
}

// dates returns the security's stored dates, ascending, loading them
// at most once per cache generation.
func (r *Resolver) dates(ctx context.Context, security model.SecurityID) ([]model.Date, error) {
	r.mu.Lock()
	cached, ok := r.index[security]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	listed, err := r.store.ListDates(ctx, security)
	if err != nil {
		return nil, fmt.Errorf("list dates for %s: %w", security, err)
	}

	r.mu.Lock()
	r.index[security] = listed
	r.mu.Unlock()
	return listed, nil
}

// Resolve maps target to a stored date under the direction policy.
// maxToleranceDays bounds the accepted day distance; zero or negative
// means unbounded. Fails with ErrNoDataAvailable when no stored date
// can satisfy the query and ErrOutOfTolerance when the best candidate
// is too far away.
func (r *Resolver) Resolve(ctx context.Context, security model.SecurityID, target model.Date, direction Direction, maxToleranceDays int) (model.Date, error) {
	dates, err := r.dates(ctx, security)
	if err != nil {
		return model.Date{}, err
	}
	if len(dates) == 0 {
		return model.Date{}, fmt.Errorf("%w: no snapshots stored for %s", ErrNoDataAvailable, security)
	}

	// First index with dates[i] >= target.
	idx := sort.Search(len(dates), func(i int) bool {
		return !dates[i].Before(target)
	})

	var best model.Date
	switch direction {
	case OnOrAfter:
		if idx == len(dates) {
			return model.Date{}, fmt.Errorf("%w: no stored date for %s on or after %s", ErrNoDataAvailable, security, target)
		}
		best = dates[idx]

	case OnOrBefore:
		if idx < len(dates) && dates[idx] == target {
			best = dates[idx]
			break
		}
		if idx == 0 {
			return model.Date{}, fmt.Errorf("%w: no stored date for %s on or before %s", ErrNoDataAvailable, security, target)
		}
		best = dates[idx-1]

	case Nearest:
		switch {
		case idx == 0:
			best = dates[0]
		case idx == len(dates):
			best = dates[len(dates)-1]
		default:
			earlier, later := dates[idx-1], dates[idx]
			// Tie breaks toward the earlier date.
			if model.DaysBetween(target, later) < model.DaysBetween(earlier, target) {
				best = later
			} else {
				best = earlier
			}
		}

	default:
		return model.Date{}, fmt.Errorf("unknown direction %v", direction)
	}

	if maxToleranceDays > 0 {
		distance := model.DaysBetween(target, best)
		if distance < 0 {
			distance = -distance
		}
		if distance > maxToleranceDays {
			return model.Date{}, &ToleranceError{
				Security: security,
				Target:   target,
				Best:     best,
				Distance: distance,
				Max:      maxToleranceDays,
			}
		}
	}

	return best, nil
}
