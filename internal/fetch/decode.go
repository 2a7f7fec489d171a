package fetch

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/GrahamLi/TDDC/internal/model"
)

// The TDCC response carries one row per ownership-size level. Levels
// 1-15 are the bracket scale; level 16 is the registrar's rounding
// adjustment and level 17 the grand total. Counts arrive as
// comma-grouped strings.
const (
	maxBracketLevel = 15
	adjustmentLevel = 16
	totalLevel      = 17
)

// noDataMessages are the provider status texts that mean "no disclosure
// exists for this date" rather than an error.
var noDataMessages = []string{
	"查無資料",
	"no data",
}

type queryResponse struct {
	Date        string     `json:"scaDate"`
	StockNo     string     `json:"stockNo"`
	ResponseMsg string     `json:"responseMsg"`
	Data        []queryRow `json:"data"`
}

type queryRow struct {
	Level   string `json:"securityHolderLevel"`
	Label   string `json:"securityHolderRange"`
	Holders string `json:"holderCount"`
	Shares  string `json:"shareCount"`
	Percent string `json:"sharePercent"`
}

// decodeSnapshot maps a 2xx response body to a snapshot, ErrNoData, or
// a classified error. A body that is not valid JSON is transient: the
// source intermittently serves error pages with a 200 status.
func decodeSnapshot(body []byte, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error) {
	var resp queryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("malformed response body: %w", err)}
	}

	if msg := strings.TrimSpace(resp.ResponseMsg); msg != "" {
		lower := strings.ToLower(msg)
		for _, marker := range noDataMessages {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return nil, fmt.Errorf("%w: %s", ErrNoData, msg)
			}
		}
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoData
	}

	snapshot := model.OwnershipSnapshot{
		Security: security,
		Date:     date,
	}
	var sum int64
	for _, row := range resp.Data {
		level, err := strconv.Atoi(strings.TrimSpace(row.Level))
		if err != nil {
			return nil, &TransientError{Err: fmt.Errorf("row level %q: %w", row.Level, err)}
		}

		switch {
		case level >= 1 && level <= maxBracketLevel:
			holders, err := parseCount(row.Holders)
			if err != nil {
				return nil, &TransientError{Err: fmt.Errorf("level %d holders: %w", level, err)}
			}
			shares, err := parseCount(row.Shares)
			if err != nil {
				return nil, &TransientError{Err: fmt.Errorf("level %d shares: %w", level, err)}
			}
			snapshot.Brackets = append(snapshot.Brackets, model.Bracket{
				Level:   level,
				Label:   strings.TrimSpace(row.Label),
				Holders: holders,
				Shares:  shares,
			})
			sum += shares
		case level == totalLevel:
			total, err := parseCount(row.Shares)
			if err != nil {
				return nil, &TransientError{Err: fmt.Errorf("total shares: %w", err)}
			}
			snapshot.TotalShares = total
		case level == adjustmentLevel:
			// Rounding adjustment; not part of the bracket scale.
		default:
			return nil, &TransientError{Err: fmt.Errorf("unexpected row level %d", level)}
		}
	}

	if snapshot.TotalShares == 0 {
		snapshot.TotalShares = sum
	}

	if err := snapshot.Validate(); err != nil {
		return nil, &TransientError{Err: fmt.Errorf("decoded snapshot invalid: %w", err)}
	}
	return &snapshot, nil
}

// parseCount parses a comma-grouped count like "1,234,567".
func parseCount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse count %q: %w", s, err)
	}
	return n, nil
}
