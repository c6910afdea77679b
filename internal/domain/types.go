// Package domain holds the core value types shared across the engine.
// It is deliberately dependency-free: no infrastructure imports, no logging.
package domain

import (
	"regexp"
	"strings"
	"time"
)

// Direction is a directional read on a ticker or signal.
type Direction string

const (
	Bullish Direction = "bullish"
	Bearish Direction = "bearish"
	Neutral Direction = "neutral"
)

// TradeDirection is the side of a trade.
type TradeDirection string

const (
	Long  TradeDirection = "long"
	Short TradeDirection = "short"
)

// TradeStatus is the lifecycle state of a paper trade.
// A trade transitions from pending to exactly one closed status.
type TradeStatus string

const (
	StatusPending      TradeStatus = "pending"
	StatusWinT1        TradeStatus = "win-t1"
	StatusWinT2        TradeStatus = "win-t2"
	StatusLossStop     TradeStatus = "loss-stop"
	StatusClosedEOD    TradeStatus = "closed-eod"
	StatusClosedManual TradeStatus = "closed-manual"
)

// Closed reports whether the status is terminal.
func (s TradeStatus) Closed() bool { return s != StatusPending }

// Regime is the coarse market-state label derived from VIX + ADX + breadth + tide.
type Regime string

const (
	RegimeTrendingUp   Regime = "trending-up"
	RegimeTrendingDown Regime = "trending-down"
	RegimeRanging      Regime = "ranging"
	RegimeVolatile     Regime = "volatile"
	RegimeUnknown      Regime = "unknown"
)

// Horizon is the expected holding duration for a setup.
type Horizon string

const (
	HorizonScalp         Horizon = "scalp"
	HorizonDay           Horizon = "day"
	HorizonDayVolatile   Horizon = "day-volatile"
	HorizonSwing         Horizon = "swing"
	HorizonIntraday      Horizon = "intraday"
	HorizonExtendedHours Horizon = "extended-hours"
)

// Intraday reports whether trades on this horizon must be flat by the close.
func (h Horizon) Intraday() bool {
	switch h {
	case HorizonScalp, HorizonDay, HorizonDayVolatile, HorizonIntraday:
		return true
	}
	return false
}

// Tier is the refresh cadence class for a data category.
type Tier string

const (
	TierHot  Tier = "HOT"
	TierWarm Tier = "WARM"
	TierCold Tier = "COLD"
)

// PriceSource tags where a quote's last price came from. Real-time stream values
// supersede snapshots, which supersede historical closes.
type PriceSource string

const (
	SourceRealTimeStream  PriceSource = "real-time-stream"
	SourceSnapshot        PriceSource = "snapshot"
	SourceHistoricalClose PriceSource = "historical-close"
)

// DiscoverySource identifies the producer that surfaced a discovery.
type DiscoverySource string

const (
	DiscoveryScanner          DiscoverySource = "Scanner"
	DiscoveryVolatilityRunner DiscoverySource = "VolatilityRunner"
	DiscoveryHaltResume       DiscoverySource = "HaltResume"
	DiscoveryGapAnalyzer      DiscoverySource = "GapAnalyzer"
)

// Timeframe is a candle granularity.
type Timeframe string

const (
	TF1m  Timeframe = "1m"
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// ValidTimeframe reports whether tf is one of the recognized granularities.
func ValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1m, TF5m, TF15m, TF1h, TF4h, TF1d:
		return true
	}
	return false
}

var tickerPattern = regexp.MustCompile(`^[A-Z]{1,5}$`)

// NormalizeTicker uppercases and trims a raw symbol. It does not validate.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidTicker reports whether s is a canonical equity symbol (1-5 uppercase letters).
func ValidTicker(s string) bool {
	return tickerPattern.MatchString(s)
}

// Quote is the latest per-ticker price picture, merged across providers.
type Quote struct {
	Ticker       string      `json:"ticker"`
	Last         float64     `json:"last"`
	Open         float64     `json:"open"`
	High         float64     `json:"high"`
	Low          float64     `json:"low"`
	PrevClose    float64     `json:"prevClose"`
	Volume       int64       `json:"volume"`
	VWAP         float64     `json:"vwap"`
	Bid          float64     `json:"bid"`
	Ask          float64     `json:"ask"`
	PriceSource  PriceSource `json:"priceSource"`
	EarningsNext string      `json:"earningsNext,omitempty"` // YYYY-MM-DD
	AnnounceTime string      `json:"announceTime,omitempty"` // bmo | amc | unknown
	UpdatedAt    time.Time   `json:"updatedAt"`
}

// Candle is a single OHLCV bar.
type Candle struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// MinCandles is the minimum series length before indicators compute.
const MinCandles = 30

// MACD bundles the MACD line, signal, histogram and histogram slope.
// Suppressed is set when |histogram| falls below the noise floor (0.5% of ATR).
type MACD struct {
	Value      float64 `json:"value"`
	Signal     float64 `json:"signal"`
	Histogram  float64 `json:"histogram"`
	Slope      float64 `json:"slope"`
	Accel      float64 `json:"accel"`
	Suppressed bool    `json:"suppressed"`
}

// Bollinger bands with the price's normalized position inside the band.
type Bollinger struct {
	Upper     float64 `json:"upper"`
	Middle    float64 `json:"middle"`
	Lower     float64 `json:"lower"`
	Position  float64 `json:"position"` // clamped to [0,1]
	Bandwidth float64 `json:"bandwidth"`
}

// ADX carries the trend-strength read and the directional components.
type ADX struct {
	Value         float64 `json:"value"`
	TrendStrength string  `json:"trendStrength"` // absent | weak | strong | very-strong
	PlusDI        float64 `json:"plusDI"`
	MinusDI       float64 `json:"minusDI"`
}

// Fibonacci retracement levels and extensions anchored to the latest swing.
type Fibonacci struct {
	SwingHigh  float64            `json:"swingHigh"`
	SwingLow   float64            `json:"swingLow"`
	Levels     map[string]float64 `json:"levels"`     // "0.382" etc
	Extensions map[string]float64 `json:"extensions"` // "1.272", "1.618"
}

// Pivots are classic floor-trader pivot points off the previous day.
type Pivots struct {
	PP float64 `json:"pp"`
	R1 float64 `json:"r1"`
	R2 float64 `json:"r2"`
	S1 float64 `json:"s1"`
	S2 float64 `json:"s2"`
}

// Pattern is a detected candlestick pattern. Strength below 0.3 is not emitted.
type Pattern struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Strength  float64   `json:"strength"`
}

// DivergenceType enumerates RSI divergence flavors.
type DivergenceType string

const (
	RegularBull DivergenceType = "regular-bull"
	RegularBear DivergenceType = "regular-bear"
	HiddenBull  DivergenceType = "hidden-bull"
	HiddenBear  DivergenceType = "hidden-bear"
)

// Divergence is a price/RSI divergence found on recent swing pivots.
// Hidden divergences carry 60% of a regular divergence's strength.
type Divergence struct {
	Type     DivergenceType `json:"type"`
	Strength float64        `json:"strength"`
	Detail   string         `json:"detail"`
}

// Technicals is the derived indicator bundle for one ticker and timeframe.
type Technicals struct {
	RSI         float64      `json:"rsi"`
	RSISlope    float64      `json:"rsiSlope"`
	EMA9        float64      `json:"ema9"`
	EMA20       float64      `json:"ema20"`
	EMA50       float64      `json:"ema50"`
	EMABias     Direction    `json:"emaBias"`
	MACD        MACD         `json:"macd"`
	ATR         float64      `json:"atr"`
	ATRSeries   []float64    `json:"atrSeries,omitempty"`
	ATRChange   float64      `json:"atrChange"`
	Bollinger   Bollinger    `json:"bollinger"`
	ADX         ADX          `json:"adx"`
	Fib         Fibonacci    `json:"fib"`
	Pivots      Pivots       `json:"pivots"`
	Patterns    []Pattern    `json:"patterns,omitempty"`
	Divergences []Divergence `json:"divergences,omitempty"`
	SwingHigh   float64      `json:"swingHigh"`
	SwingLow    float64      `json:"swingLow"`
	VolumeSpike bool         `json:"volumeSpike"`
	VWAP        float64      `json:"vwap"`
}

// StrikeFlow is aggregated options volume and premium at one strike.
type StrikeFlow struct {
	Strike     float64 `json:"strike"`
	Volume     int64   `json:"volume"`
	CallVolume int64   `json:"callVolume"`
	PutVolume  int64   `json:"putVolume"`
	NetPremium float64 `json:"netPremium"`
}

// FlowAlert is a single unusual-options-activity print.
type FlowAlert struct {
	Ticker     string    `json:"ticker"`
	Side       string    `json:"side"` // call | put
	Premium    float64   `json:"premium"`
	Strike     float64   `json:"strike"`
	Expiry     string    `json:"expiry"`
	Aggressive bool      `json:"aggressive"`
	At         time.Time `json:"at"`
}

// NetPremiumPoint is one sample of the net call-minus-put premium series.
type NetPremiumPoint struct {
	At         time.Time `json:"at"`
	NetPremium float64   `json:"netPremium"`
}

// OptionsFacts bundles the per-ticker options surface.
type OptionsFacts struct {
	FlowAlerts        []FlowAlert       `json:"flowAlerts,omitempty"`
	NetPremium        []NetPremiumPoint `json:"netPremium,omitempty"`
	FlowPerStrike     []StrikeFlow      `json:"flowPerStrike,omitempty"`
	IntradayPerStrike []StrikeFlow      `json:"intradayPerStrike,omitempty"`
	GEXPerStrike      []StrikeFlow      `json:"gexPerStrike,omitempty"`
	CallPremium       float64           `json:"callPremium"`
	PutPremium        float64           `json:"putPremium"`
	SpotGamma         float64           `json:"spotGamma"`
	MaxPain           float64           `json:"maxPain"`
	OIChange          float64           `json:"oiChange"`
	IVRank            float64           `json:"ivRank"` // percentile over 1y, [0,100]
	IVSkew            float64           `json:"ivSkew"` // 25-delta risk reversal
	RealizedVol       float64           `json:"realizedVol"`
	TermContango      bool              `json:"termContango"`
	NOPE              float64           `json:"nope"`
}

// Earnings carries the next event plus post-report enrichment.
type Earnings struct {
	NextDate         string  `json:"nextDate,omitempty"` // YYYY-MM-DD
	AnnounceTime     string  `json:"announceTime,omitempty"`
	Beat             string  `json:"beat,omitempty"` // BEAT | MISS | INLINE
	SurprisePct      float64 `json:"surprisePct"`
	AfterHoursChange float64 `json:"afterHoursChange"`
}

// DarkPool aggregates lit-exchange-invisible prints for one ticker.
type DarkPool struct {
	TotalVolume   int64   `json:"totalVolume"`
	BlockCount    int     `json:"blockCount"`
	AggressorBias float64 `json:"aggressorBias"` // [-1,1], buy-side positive
	LargestPrint  float64 `json:"largestPrint"`
}

// TickerFacts is everything the engine knows about one symbol.
type TickerFacts struct {
	Quote         *Quote                `json:"quote,omitempty"`
	Technicals    *Technicals           `json:"technicals,omitempty"`
	IntradayTA    *Technicals           `json:"intradayTA,omitempty"`
	Options       *OptionsFacts         `json:"options,omitempty"`
	DarkPool      *DarkPool             `json:"darkPool,omitempty"`
	Earnings      *Earnings             `json:"earnings,omitempty"`
	ShortInterest float64               `json:"shortInterest"` // % of float
	NewsSentiment float64               `json:"newsSentiment"` // [-1,1]
	Updated       map[string]time.Time  `json:"updated,omitempty"` // per-category freshness
}

// MarketTide is the market-wide bull/bear options volume balance.
type MarketTide struct {
	BullPremium float64   `json:"bullPremium"`
	BearPremium float64   `json:"bearPremium"`
	BullVolume  int64     `json:"bullVolume"`
	BearVolume  int64     `json:"bearVolume"`
	At          time.Time `json:"at"`
}

// VIXState is the current VIX read with a spike flag.
type VIXState struct {
	Level     float64 `json:"level"`
	ChangePct float64 `json:"changePct"`
	Spiking   bool    `json:"spiking"`
}

// CalendarEvent is an economic or FDA calendar row.
type CalendarEvent struct {
	Date    string `json:"date"` // YYYY-MM-DD
	Ticker  string `json:"ticker,omitempty"`
	Name    string `json:"name"`
	Impact  string `json:"impact,omitempty"` // low | medium | high
	Kind    string `json:"kind"`             // economic | fda
}

// NewsHeadline is a scored headline, optionally ticker-tagged.
type NewsHeadline struct {
	Ticker      string    `json:"ticker,omitempty"`
	Headline    string    `json:"headline"`
	Sentiment   float64   `json:"sentiment"` // [-1,1]
	PublishedAt time.Time `json:"publishedAt"`
}

// InsiderTx is one insider transaction row.
type InsiderTx struct {
	Ticker string    `json:"ticker"`
	Role   string    `json:"role"`
	Side   string    `json:"side"` // buy | sell
	Value  float64   `json:"value"`
	At     time.Time `json:"at"`
}

// CongressTrade is a congressional transaction enriched with the member's record.
type CongressTrade struct {
	Ticker     string    `json:"ticker"`
	Member     string    `json:"member"`
	Side       string    `json:"side"`
	Amount     string    `json:"amount"` // disclosed range, e.g. "$15,001-$50,000"
	WinRate    float64   `json:"winRate"`
	DisclosedAt time.Time `json:"disclosedAt"`
}

// MarketHoliday marks a closed or early-close trading day.
type MarketHoliday struct {
	Date       string `json:"date"` // YYYY-MM-DD
	Name       string `json:"name"`
	EarlyClose bool   `json:"earlyClose"`
}

// TickerImpact is one row of the top-net-premium-impact list.
type TickerImpact struct {
	Ticker     string  `json:"ticker"`
	NetPremium float64 `json:"netPremium"`
}

// MarketFacts bundles the market-wide state.
type MarketFacts struct {
	Tide         *MarketTide     `json:"tide,omitempty"`
	VIX          *VIXState       `json:"vix,omitempty"`
	SectorTides  map[string]float64 `json:"sectorTides,omitempty"`
	ETFTides     map[string]float64 `json:"etfTides,omitempty"`
	Calendar     []CalendarEvent `json:"calendar,omitempty"`
	TopImpact    []TickerImpact  `json:"topImpact,omitempty"`
	Insiders     []InsiderTx     `json:"insiders,omitempty"`
	Congress     []CongressTrade `json:"congress,omitempty"`
	News         []NewsHeadline  `json:"news,omitempty"`
	Holidays     []MarketHoliday `json:"holidays,omitempty"`
	Breadth      float64         `json:"breadth"` // advancers/(advancers+decliners), [0,1]
}

// TickSummary is the rolling per-ticker read maintained by the tick subscriber.
type TickSummary struct {
	Ticker          string    `json:"ticker"`
	LastPrice       float64   `json:"lastPrice"`
	Bid             float64   `json:"bid"`
	Ask             float64   `json:"ask"`
	VWAP            float64   `json:"vwap"`
	BuyVolumePct    float64   `json:"buyVolumePct"`
	SellVolumePct   float64   `json:"sellVolumePct"`
	FlowImbalance   float64   `json:"flowImbalance"` // [-1,1]
	LargeBlockBuys  int       `json:"largeBlockBuys"`
	LargeBlockSells int       `json:"largeBlockSells"`
	TotalVolume     int64     `json:"totalVolume"`
	HighOfDay       float64   `json:"highOfDay"`
	LowOfDay        float64   `json:"lowOfDay"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// GapSignal is the tradeable geometry a classified gap emits. On fade setups
// Target1 marks the partial gap fill and Target2 the full fill back to the
// prior close; continuation setups project half and full measured moves.
type GapSignal struct {
	Entry   float64 `json:"entry"`
	Stop    float64 `json:"stop"`
	Target1 float64 `json:"target1"`
	Target2 float64 `json:"target2"`
}

// DiscoveryMeta carries producer-specific context for a discovery.
type DiscoveryMeta struct {
	GapPct      float64    `json:"gapPct,omitempty"`
	RelVolume   float64    `json:"relVolume,omitempty"`
	HaltReason  string     `json:"haltReason,omitempty"`
	GapCause    string     `json:"gapCause,omitempty"`
	Personality string     `json:"personality,omitempty"`
	GapSignal   *GapSignal `json:"gapSignal,omitempty"`
}

// Discovery is a non-watchlist ticker promoted into the scoring loop.
// Owned by the discovery pipeline; expires two hours after creation.
type Discovery struct {
	ID           string          `json:"id"`
	Ticker       string          `json:"ticker"`
	Source       DiscoverySource `json:"source"`
	DiscoveredAt time.Time       `json:"discoveredAt"`
	Price        float64         `json:"price"`
	Direction    Direction       `json:"direction"`
	Confidence   int             `json:"confidence"`
	TopSignals   []string        `json:"topSignals,omitempty"`
	Meta         DiscoveryMeta   `json:"meta"`
	ExpiresAt    time.Time       `json:"expiresAt"`
}

// SignalEntry is one fired indicator inside a SignalScore.
type SignalEntry struct {
	Name      string    `json:"name"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
	Detail    string    `json:"detail,omitempty"`
}

// ShadowScore is what an inactive signal version would have said on the same inputs.
type ShadowScore struct {
	Direction  Direction `json:"direction"`
	Confidence int       `json:"confidence"`
	BullWeight float64   `json:"bullWeight"`
	BearWeight float64   `json:"bearWeight"`
}

// FeatureCount is the fixed width of the ML feature vector.
const FeatureCount = 25

// SignalScore is the engine's directional read on one ticker.
type SignalScore struct {
	Ticker        string                 `json:"ticker"`
	Direction     Direction              `json:"direction"`
	Confidence    int                    `json:"confidence"` // [0,95]
	BullWeight    float64                `json:"bullWeight"`
	BearWeight    float64                `json:"bearWeight"`
	Spread        float64                `json:"spread"`
	Signals       []SignalEntry          `json:"signals"`
	Features      []float64              `json:"features"`
	ShadowScores  map[string]ShadowScore `json:"shadowScores,omitempty"`
	MatchedSetups []string               `json:"matchedSetups,omitempty"`
	Session       Session                `json:"session"`
	Regime        Regime                 `json:"regime"`
	Timestamp     time.Time              `json:"timestamp"`
}

// StructureSnap records how a raw ATR target/stop was snapped to structure.
type StructureSnap struct {
	Target1      float64 `json:"target1"`
	Stop         float64 `json:"stop"`
	Snapped      bool    `json:"snapped"`
	TargetSource string  `json:"targetSource,omitempty"`
	StopSource   string  `json:"stopSource,omitempty"`
}

// TradeSetup is a fully-specified entry recommendation.
type TradeSetup struct {
	Ticker              string         `json:"ticker"`
	Direction           TradeDirection `json:"direction"`
	Entry               float64        `json:"entry"`
	Target1             float64        `json:"target1"`
	Target2             float64        `json:"target2"`
	Stop                float64        `json:"stop"`
	RiskReward          float64        `json:"riskReward"`
	Horizon             Horizon        `json:"horizon"`
	ATRMultiplier       float64        `json:"atrMultiplier"`
	TechnicalConfidence int            `json:"technicalConfidence"`
	MLConfidence        int            `json:"mlConfidence"`
	BlendedConfidence   int            `json:"blendedConfidence"`
	KellyPct            float64        `json:"kellyPct"`
	KellyShares         int            `json:"kellyShares"`
	Signals             []SignalEntry  `json:"signals,omitempty"`
	Structure           *StructureSnap `json:"structure,omitempty"`
	CreatedAt           time.Time      `json:"createdAt"`
}

// PaperTrade is one simulated position, append-only once closed.
type PaperTrade struct {
	ID            string         `json:"id"`
	Ticker        string         `json:"ticker"`
	Direction     TradeDirection `json:"direction"`
	EntryPrice    float64        `json:"entryPrice"`
	EntryTime     time.Time      `json:"entryTime"`
	Stop          float64        `json:"stop"`
	Target1       float64        `json:"target1"`
	Target2       float64        `json:"target2"`
	Horizon       Horizon        `json:"horizon"`
	Confidence    int            `json:"confidence"`
	Status        TradeStatus    `json:"status"`
	ExitPrice     float64        `json:"exitPrice,omitempty"`
	ExitTime      *time.Time     `json:"exitTime,omitempty"`
	PnlPoints     float64        `json:"pnlPoints,omitempty"`
	PnlPct        float64        `json:"pnlPct,omitempty"`
	PnlTotal      float64        `json:"pnlTotal,omitempty"`
	UnrealizedPct float64        `json:"unrealizedPnlPct,omitempty"`
	UnrealizedTot float64        `json:"unrealizedPnlTotal,omitempty"`
	SignalVersion string         `json:"signalVersion,omitempty"`
	Shares        int            `json:"shares"`
}

// SchedulerState is the persisted slice of the scheduler.
type SchedulerState struct {
	CycleCount      int64   `json:"cycleCount"`
	DailyCallCount  int     `json:"dailyCallCount"`
	DailyLimit      int     `json:"dailyLimit"`
	LastResetDate   string  `json:"lastResetDate"` // YYYY-MM-DD in ET
	SessionName     Session `json:"sessionName"`
	SessionInterval int64   `json:"sessionInterval"` // milliseconds
}

// TrainingSample is one labeled row for the ML calibrator.
type TrainingSample struct {
	Features   []float64 `json:"features"`
	Label      int       `json:"label"` // 1 = win
	Confidence int       `json:"confidence"`
	PnlPct     float64   `json:"pnlPct"`
	Horizon    Horizon   `json:"horizon"`
	Ticker     string    `json:"ticker"`
	At         time.Time `json:"at"`
}
