// Package universe supplies the set of security identifiers eligible
// for ingestion. Providers are read once per run; the crawler treats
// the result as a possibly-stale snapshot.
package universe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/GrahamLi/TDDC/internal/model"
)

// Provider lists the securities an ingestion run should cover.
type Provider interface {
	ListEligible(ctx context.Context) ([]model.SecurityID, error)
}

// DefaultExcludeKeywords filters non-equity instruments (ETF/ETN,
// bond, leveraged and inverse products) out of scraped listings.
var DefaultExcludeKeywords = []string{
	"ETF", "ETN", "債", "期貨", "原油", "黃金", "REIT",
	"指數", "基金", "反1", "反2", "正2", "正3",
}

// Static returns a fixed set of securities, deduplicated preserving
// first-occurrence order.
type Static struct {
	codes []model.SecurityID
}

// NewStatic builds a static provider from the given codes.
func NewStatic(codes []string) *Static {
	seen := make(map[string]struct{}, len(codes))
	var out []model.SecurityID
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, model.SecurityID(c))
	}
	return &Static{codes: out}
}

// ListEligible implements Provider.
func (s *Static) ListEligible(ctx context.Context) ([]model.SecurityID, error) {
	return append([]model.SecurityID(nil), s.codes...), nil
}

// File reads securities from a text file, one code per line. Blank
// lines and lines starting with '#' are skipped.
type File struct {
	path string
}

// NewFile builds a file-backed provider.
func NewFile(path string) *File {
	return &File{path: path}
}

// ListEligible implements Provider.
func (f *File) ListEligible(ctx context.Context) ([]model.SecurityID, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer file.Close()

	var codes []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		codes = append(codes, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}
	return NewStatic(codes).ListEligible(ctx)
}

// listingPattern matches "name(2330)" style entries on the code-table
// page. The name capture feeds the exclude-keyword filter.
var listingPattern = regexp.MustCompile(`([\p{Han}A-Za-z0-9&*\-\. ]+?)[(（]\s*(\d{4,6})\s*[)）]`)

// maxListingBytes caps how much of the code-table page is read; the
// real page is well under 1 MiB.
const maxListingBytes = 4 << 20

// HTTP scrapes a MoneyDJ-style code-table page and filters out
// non-equity instruments by name keyword. It deliberately avoids any
// DOM contract: entries are extracted by pattern, and a page whose
// layout changed simply yields fewer codes.
type HTTP struct {
	url             string
	excludeKeywords []string
	httpClient      *http.Client
	logger          *slog.Logger
}

// NewHTTP builds a scraping provider. A nil client falls back to
// http.DefaultClient; empty keywords fall back to
// DefaultExcludeKeywords.
func NewHTTP(url string, excludeKeywords []string, client *http.Client, logger *slog.Logger) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	if len(excludeKeywords) == 0 {
		excludeKeywords = DefaultExcludeKeywords
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTP{
		url:             url,
		excludeKeywords: excludeKeywords,
		httpClient:      client,
		logger:          logger,
	}
}

// ListEligible implements Provider.
func (h *HTTP) ListEligible(ctx context.Context) ([]model.SecurityID, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create universe request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch universe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch universe: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxListingBytes))
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}

	codes := h.extract(string(body))
	if len(codes) == 0 {
		return nil, fmt.Errorf("no security codes found at %s", h.url)
	}

	h.logger.Info("universe listed", "source", h.url, "securities", len(codes))
	return codes, nil
}

// extract pulls (name, code) pairs out of the page, filters by name
// keyword, and deduplicates preserving order.
func (h *HTTP) extract(page string) []model.SecurityID {
	seen := make(map[string]struct{})
	var codes []model.SecurityID

	for _, m := range listingPattern.FindAllStringSubmatch(page, -1) {
		name, code := strings.TrimSpace(m[1]), m[2]
		if _, ok := seen[code]; ok {
			continue
		}
		if h.excluded(name) {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, model.SecurityID(code))
	}
	return codes
}

func (h *HTTP) excluded(name string) bool {
	upper := strings.ToUpper(name)
	for _, kw := range h.excludeKeywords {
		if strings.Contains(upper, strings.ToUpper(kw)) {
			return true
		}
	}
	return false
}
