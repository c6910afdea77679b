package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkoukos/argus/internal/domain"
)

const avBaseURL = "https://www.alphavantage.co/query"

// AlphaVantageProvider serves the earnings calendar. The endpoint returns CSV
// rather than JSON.
type AlphaVantageProvider struct {
	apiKey string
	base   string
	client *http.Client
}

// NewAlphaVantage creates the client.
func NewAlphaVantage(apiKey string) *AlphaVantageProvider {
	return &AlphaVantageProvider{
		apiKey: apiKey,
		base:   avBaseURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *AlphaVantageProvider) Name() string { return "alpha-vantage" }

// Earnings returns the next scheduled report for a ticker, if one falls in the
// coming three months.
func (p *AlphaVantageProvider) Earnings(ctx context.Context, ticker string) (*domain.Earnings, error) {
	q := url.Values{
		"function": {"EARNINGS_CALENDAR"},
		"symbol":   {ticker},
		"horizon":  {"3month"},
		"apikey":   {p.apiKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("alpha-vantage: earnings calendar returned %d", resp.StatusCode)
	}

	r := csv.NewReader(io.LimitReader(resp.Body, 1<<20))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, err
	}
	dateIdx := -1
	for i, col := range header {
		if col == "reportDate" {
			dateIdx = i
		}
	}
	if dateIdx < 0 {
		return nil, fmt.Errorf("alpha-vantage: earnings calendar missing reportDate column")
	}

	earnings := &domain.Earnings{}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(row) <= dateIdx {
			continue
		}
		// Rows come soonest-first; the first valid date is the next report.
		if earnings.NextDate == "" {
			earnings.NextDate = row[dateIdx]
			earnings.AnnounceTime = "unknown"
			break
		}
	}
	return earnings, nil
}
