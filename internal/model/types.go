package model

import (
	"errors"
	"fmt"
)

// SecurityID identifies one security. It is opaque to the crawler: any
// non-empty string is valid, and IDs never change once assigned upstream.
type SecurityID string

// Validate checks the SecurityID invariant.
func (id SecurityID) Validate() error {
	if id == "" {
		return errors.New("security id is empty")
	}
	return nil
}

// Bracket is one ownership-size tier within a snapshot.
//
// Level is the provider's 1-based tier number; Label is the provider's
// human-readable range (e.g. "1,000-5,000"). The crawler stores labels
// verbatim and never interprets them.
type Bracket struct {
	Level   int    `json:"level"`
	Label   string `json:"label,omitempty"`
	Holders int64  `json:"holders"`
	Shares  int64  `json:"shares"`
}

// OwnershipSnapshot is one security's ownership-distribution disclosure
// for one date. Snapshots are immutable once written; a corrected
// re-publication replaces the whole record at the same (security, date).
type OwnershipSnapshot struct {
	Security    SecurityID `json:"security"`
	Date        Date       `json:"date"`
	TotalShares int64      `json:"total_shares"`
	Brackets    []Bracket  `json:"brackets"`
}

// Validate checks the structural invariants of a snapshot:
// non-empty security, non-zero date, positive total, bracket levels
// strictly ascending (full scale, no gaps or overlaps), non-negative
// counts, holders==0 implying shares==0, and bracket share sum not
// exceeding the total. Equality with the total is expected but not
// enforced, to tolerate source rounding.
func (s *OwnershipSnapshot) Validate() error {
	if err := s.Security.Validate(); err != nil {
		return err
	}
	if s.Date.IsZero() {
		return errors.New("snapshot date is zero")
	}
	if s.TotalShares <= 0 {
		return fmt.Errorf("total shares must be positive, got %d", s.TotalShares)
	}
	if len(s.Brackets) == 0 {
		return errors.New("snapshot has no brackets")
	}

	var sum int64
	prevLevel := 0
	for i, b := range s.Brackets {
		if b.Level != prevLevel+1 {
			return fmt.Errorf("bracket %d: level %d breaks the tier scale (want %d)", i, b.Level, prevLevel+1)
		}
		prevLevel = b.Level

		if b.Holders < 0 || b.Shares < 0 {
			return fmt.Errorf("bracket level %d: negative counts (holders=%d shares=%d)", b.Level, b.Holders, b.Shares)
		}
		if b.Holders == 0 && b.Shares != 0 {
			return fmt.Errorf("bracket level %d: %d shares held by zero holders", b.Level, b.Shares)
		}
		sum += b.Shares
	}

	if sum > s.TotalShares {
		return fmt.Errorf("bracket shares (%d) exceed total shares (%d)", sum, s.TotalShares)
	}
	return nil
}
