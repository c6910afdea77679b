package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkoukos/argus/internal/domain"
)

const polygonBaseURL = "https://api.polygon.io"

// PolygonProvider serves quotes, candle history and screener scans from the
// Polygon REST API.
type PolygonProvider struct {
	apiKey string
	base   string
	client *http.Client
}

// NewPolygon creates the client.
func NewPolygon(apiKey string) *PolygonProvider {
	return &PolygonProvider{
		apiKey: apiKey,
		base:   polygonBaseURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *PolygonProvider) Name() string { return "polygon" }

func (p *PolygonProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("polygon: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type polygonSnapshot struct {
	Ticker struct {
		Day struct {
			Open   float64 `json:"o"`
			High   float64 `json:"h"`
			Low    float64 `json:"l"`
			Close  float64 `json:"c"`
			Volume float64 `json:"v"`
			VWAP   float64 `json:"vw"`
		} `json:"day"`
		PrevDay struct {
			Close float64 `json:"c"`
		} `json:"prevDay"`
		LastTrade struct {
			Price float64 `json:"p"`
		} `json:"lastTrade"`
		LastQuote struct {
			Bid float64 `json:"p"`
			Ask float64 `json:"P"`
		} `json:"lastQuote"`
		TodaysChangePct float64 `json:"todaysChangePerc"`
		Updated         int64   `json:"updated"`
	} `json:"ticker"`
}

// Quote returns the latest snapshot for a ticker.
func (p *PolygonProvider) Quote(ctx context.Context, ticker string) (*domain.Quote, error) {
	var body polygonSnapshot
	if err := p.get(ctx, "/v2/snapshot/locale/us/markets/stocks/tickers/"+ticker, nil, &body); err != nil {
		return nil, err
	}
	t := body.Ticker
	last := t.LastTrade.Price
	source := domain.SourceSnapshot
	if last == 0 {
		last = t.PrevDay.Close
		source = domain.SourceHistoricalClose
	}
	return &domain.Quote{
		Ticker:      ticker,
		Last:        last,
		Open:        t.Day.Open,
		High:        t.Day.High,
		Low:         t.Day.Low,
		PrevClose:   t.PrevDay.Close,
		Volume:      int64(t.Day.Volume),
		VWAP:        t.Day.VWAP,
		Bid:         t.LastQuote.Bid,
		Ask:         t.LastQuote.Ask,
		PriceSource: source,
		UpdatedAt:   time.Unix(0, t.Updated),
	}, nil
}

// Candles returns up to limit bars for the timeframe, oldest first.
func (p *PolygonProvider) Candles(ctx context.Context, ticker string, tf domain.Timeframe, limit int) ([]domain.Candle, error) {
	mult, span, lookback := rangeFor(tf, limit)
	to := time.Now()
	from := to.Add(-lookback)
	path := fmt.Sprintf("/v2/aggs/ticker/%s/range/%d/%s/%s/%s",
		ticker, mult, span, from.Format("2006-01-02"), to.Format("2006-01-02"))

	var body struct {
		Results []struct {
			Timestamp int64   `json:"t"`
			Open      float64 `json:"o"`
			High      float64 `json:"h"`
			Low       float64 `json:"l"`
			Close     float64 `json:"c"`
			Volume    float64 `json:"v"`
		} `json:"results"`
	}
	if err := p.get(ctx, path, url.Values{"limit": {fmt.Sprint(limit)}, "sort": {"asc"}}, &body); err != nil {
		return nil, err
	}
	candles := make([]domain.Candle, 0, len(body.Results))
	for _, r := range body.Results {
		candles = append(candles, domain.Candle{
			Date:   time.UnixMilli(r.Timestamp),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: int64(r.Volume),
		})
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// rangeFor maps a timeframe to the aggregate window and the calendar lookback
// needed to collect roughly limit bars of it.
func rangeFor(tf domain.Timeframe, limit int) (mult int, span string, lookback time.Duration) {
	switch tf {
	case domain.TF1m:
		return 1, "minute", 2 * 24 * time.Hour
	case domain.TF5m:
		return 5, "minute", 5 * 24 * time.Hour
	case domain.TF15m:
		return 15, "minute", 10 * 24 * time.Hour
	case domain.TF1h:
		return 1, "hour", 30 * 24 * time.Hour
	case domain.TF4h:
		return 4, "hour", 90 * 24 * time.Hour
	default:
		// Daily: weekends and holidays thin the series, overshoot the window.
		days := limit * 3 / 2
		if days < 45 {
			days = 45
		}
		return 1, "day", time.Duration(days) * 24 * time.Hour
	}
}

// Screen runs a gainers scan and filters it client-side against the query.
func (p *PolygonProvider) Screen(ctx context.Context, q ScreenQuery) ([]ScreenRow, error) {
	var body struct {
		Tickers []struct {
			Ticker string `json:"ticker"`
			Day    struct {
				Close  float64 `json:"c"`
				Volume float64 `json:"v"`
			} `json:"day"`
			PrevDay struct {
				Volume float64 `json:"v"`
			} `json:"prevDay"`
			TodaysChangePct float64 `json:"todaysChangePerc"`
		} `json:"tickers"`
	}
	if err := p.get(ctx, "/v2/snapshot/locale/us/markets/stocks/gainers", nil, &body); err != nil {
		return nil, err
	}

	var rows []ScreenRow
	for _, t := range body.Tickers {
		sym := domain.NormalizeTicker(t.Ticker)
		if !domain.ValidTicker(sym) {
			continue
		}
		relVol := 0.0
		if t.PrevDay.Volume > 0 {
			relVol = t.Day.Volume / t.PrevDay.Volume
		}
		row := ScreenRow{
			Ticker:    sym,
			Price:     t.Day.Close,
			ChangePct: t.TodaysChangePct,
			Volume:    int64(t.Day.Volume),
			RelVolume: relVol,
		}
		// Gainers snapshot carries no market cap or float; those filters only
		// exclude when the feed provides the figure.
		if row.ChangePct < q.MinChangePct || row.Volume < q.MinVolume {
			continue
		}
		if q.MinRelVolume > 0 && row.RelVolume < q.MinRelVolume {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}
