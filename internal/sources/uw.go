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

const uwBaseURL = "https://api.unusualwhales.com"

// UWProvider is the Unusual Whales REST client. It serves the options surface,
// dark pool prints, short interest, market-wide facts and scanner candidates.
type UWProvider struct {
	token  string
	base   string
	client *http.Client
}

// NewUW creates the client. The guard layer owns timeouts and rate limiting;
// the embedded client timeout is only a backstop.
func NewUW(token string) *UWProvider {
	return &UWProvider{
		token:  token,
		base:   uwBaseURL,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (p *UWProvider) Name() string { return "unusual-whales" }

func (p *UWProvider) get(ctx context.Context, path string, query url.Values, out any) error {
	u := p.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unusual-whales: %s returned %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Options pulls the options surface. HOT covers flow and gamma; WARM and COLD
// add the slower-moving IV and positioning fields.
func (p *UWProvider) Options(ctx context.Context, ticker string, tier domain.Tier) (*domain.OptionsFacts, error) {
	facts := &domain.OptionsFacts{}

	var flow struct {
		Data []struct {
			Side      string  `json:"type"`
			Premium   float64 `json:"total_premium,string"`
			Strike    float64 `json:"strike,string"`
			Expiry    string  `json:"expiry"`
			AskSide   bool    `json:"is_ask_side"`
			CreatedAt string  `json:"created_at"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/stock/"+ticker+"/flow-alerts", url.Values{"limit": {"50"}}, &flow); err != nil {
		return nil, err
	}
	for _, a := range flow.Data {
		at, _ := time.Parse(time.RFC3339, a.CreatedAt)
		facts.FlowAlerts = append(facts.FlowAlerts, domain.FlowAlert{
			Ticker:     ticker,
			Side:       a.Side,
			Premium:    a.Premium,
			Strike:     a.Strike,
			Expiry:     a.Expiry,
			Aggressive: a.AskSide,
			At:         at,
		})
		if a.Side == "call" {
			facts.CallPremium += a.Premium
		} else {
			facts.PutPremium += a.Premium
		}
	}

	var greeks struct {
		Data []struct {
			Strike    float64 `json:"strike,string"`
			CallGamma float64 `json:"call_gamma_exposure"`
			PutGamma  float64 `json:"put_gamma_exposure"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/stock/"+ticker+"/greek-exposure/strike", nil, &greeks); err == nil {
		for _, g := range greeks.Data {
			net := g.CallGamma + g.PutGamma
			facts.SpotGamma += net
			facts.GEXPerStrike = append(facts.GEXPerStrike, domain.StrikeFlow{Strike: g.Strike, NetPremium: net})
		}
	}

	if tier == domain.TierHot {
		return facts, nil
	}

	var vol struct {
		Data struct {
			IVRank      float64 `json:"iv_rank,string"`
			IVSkew      float64 `json:"skew,string"`
			RealizedVol float64 `json:"realized_volatility,string"`
			Contango    bool    `json:"term_structure_contango"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/stock/"+ticker+"/volatility/stats", nil, &vol); err == nil {
		facts.IVRank = vol.Data.IVRank
		facts.IVSkew = vol.Data.IVSkew
		facts.RealizedVol = vol.Data.RealizedVol
		facts.TermContango = vol.Data.Contango
	}

	var mp struct {
		Data struct {
			MaxPain  float64 `json:"max_pain,string"`
			OIChange float64 `json:"oi_change"`
			NOPE     float64 `json:"nope"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/stock/"+ticker+"/max-pain", nil, &mp); err == nil {
		facts.MaxPain = mp.Data.MaxPain
		facts.OIChange = mp.Data.OIChange
		facts.NOPE = mp.Data.NOPE
	}
	return facts, nil
}

// DarkPool pulls today's off-exchange aggregates.
func (p *UWProvider) DarkPool(ctx context.Context, ticker string) (*domain.DarkPool, error) {
	var body struct {
		Data []struct {
			Volume  int64   `json:"volume"`
			Size    int64   `json:"size"`
			Price   float64 `json:"price,string"`
			Premium float64 `json:"premium,string"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/darkpool/"+ticker, url.Values{"limit": {"100"}}, &body); err != nil {
		return nil, err
	}
	// The feed does not label aggressor side per print; the bias stays neutral
	// and the signal layer leans on block counts instead.
	dp := &domain.DarkPool{}
	for _, print := range body.Data {
		dp.TotalVolume += print.Size
		if print.Size >= largeBlockShares {
			dp.BlockCount++
		}
		if print.Premium > dp.LargestPrint {
			dp.LargestPrint = print.Premium
		}
	}
	return dp, nil
}

// ShortInterest returns short interest as a percent of float.
func (p *UWProvider) ShortInterest(ctx context.Context, ticker string) (float64, error) {
	var body struct {
		Data struct {
			SIPctFloat float64 `json:"si_pct_of_float,string"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/shorts/"+ticker+"/interest-float", nil, &body); err != nil {
		return 0, err
	}
	return body.Data.SIPctFloat, nil
}

// Market pulls market-wide facts: tide always, positioning extras on WARM,
// calendars and people-flow on COLD.
func (p *UWProvider) Market(ctx context.Context, tier domain.Tier) (*domain.MarketFacts, error) {
	facts := &domain.MarketFacts{}

	var tide struct {
		Data []struct {
			NetCallPremium float64 `json:"net_call_premium,string"`
			NetPutPremium  float64 `json:"net_put_premium,string"`
			CallVolume     int64   `json:"net_call_volume"`
			PutVolume      int64   `json:"net_put_volume"`
			Timestamp      string  `json:"timestamp"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/market/market-tide", nil, &tide); err != nil {
		return nil, err
	}
	if n := len(tide.Data); n > 0 {
		last := tide.Data[n-1]
		at, _ := time.Parse(time.RFC3339, last.Timestamp)
		facts.Tide = &domain.MarketTide{
			BullPremium: last.NetCallPremium,
			BearPremium: last.NetPutPremium,
			BullVolume:  last.CallVolume,
			BearVolume:  last.PutVolume,
			At:          at,
		}
	}

	if tier == domain.TierHot {
		return facts, nil
	}

	var impact struct {
		Data []struct {
			Ticker     string  `json:"ticker"`
			NetPremium float64 `json:"net_premium,string"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/market/top-net-impact", url.Values{"limit": {"20"}}, &impact); err == nil {
		for _, row := range impact.Data {
			facts.TopImpact = append(facts.TopImpact, domain.TickerImpact{
				Ticker:     domain.NormalizeTicker(row.Ticker),
				NetPremium: row.NetPremium,
			})
		}
	}

	if tier != domain.TierCold {
		return facts, nil
	}

	var insiders struct {
		Data []struct {
			Ticker string  `json:"ticker"`
			Role   string  `json:"owner_title"`
			Side   string  `json:"transaction_type"`
			Value  float64 `json:"value,string"`
			Date   string  `json:"filing_date"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/market/insider-buy-sells", url.Values{"limit": {"50"}}, &insiders); err == nil {
		for _, row := range insiders.Data {
			at, _ := time.Parse("2006-01-02", row.Date)
			facts.Insiders = append(facts.Insiders, domain.InsiderTx{
				Ticker: domain.NormalizeTicker(row.Ticker),
				Role:   row.Role,
				Side:   row.Side,
				Value:  row.Value,
				At:     at,
			})
		}
	}

	var congress struct {
		Data []struct {
			Ticker   string `json:"ticker"`
			Member   string `json:"reporter"`
			Side     string `json:"txn_type"`
			Amount   string `json:"amounts"`
			Disclosed string `json:"filed_at_date"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/congress/recent-trades", url.Values{"limit": {"50"}}, &congress); err == nil {
		for _, row := range congress.Data {
			at, _ := time.Parse("2006-01-02", row.Disclosed)
			facts.Congress = append(facts.Congress, domain.CongressTrade{
				Ticker:      domain.NormalizeTicker(row.Ticker),
				Member:      row.Member,
				Side:        row.Side,
				Amount:      row.Amount,
				DisclosedAt: at,
			})
		}
	}

	return facts, nil
}

// ScanCandidates surfaces raw discovery candidates from the top-impact list.
func (p *UWProvider) ScanCandidates(ctx context.Context) ([]string, error) {
	var impact struct {
		Data []struct {
			Ticker string `json:"ticker"`
		} `json:"data"`
	}
	if err := p.get(ctx, "/api/market/top-net-impact", url.Values{"limit": {"15"}}, &impact); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(impact.Data))
	for _, row := range impact.Data {
		t := domain.NormalizeTicker(row.Ticker)
		if domain.ValidTicker(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
