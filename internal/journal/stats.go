package journal

import (
	"math"

	"github.com/pkoukos/argus/internal/domain"
)

// Stats summarizes closed-trade performance.
type Stats struct {
	Total        int     `json:"total"`
	Pending      int     `json:"pending"`
	Wins         int     `json:"wins"`
	Losses       int     `json:"losses"`
	WinRate      float64 `json:"winRate"` // [0,1], wins over decided trades
	AvgWinPct    float64 `json:"avgWinPct"`
	AvgLossPct   float64 `json:"avgLossPct"` // negative
	ProfitFactor float64 `json:"profitFactor"`
	TotalPnl     float64 `json:"totalPnl"`
}

func computeStats(trades []domain.PaperTrade) Stats {
	var s Stats
	var winSum, lossSum, grossWin, grossLoss float64
	for _, t := range trades {
		s.Total++
		if t.Status == domain.StatusPending {
			s.Pending++
			continue
		}
		s.TotalPnl += t.PnlTotal
		if t.PnlPct > 0 {
			s.Wins++
			winSum += t.PnlPct
			grossWin += t.PnlTotal
		} else {
			s.Losses++
			lossSum += t.PnlPct
			grossLoss += -t.PnlTotal
		}
	}
	if decided := s.Wins + s.Losses; decided > 0 {
		s.WinRate = float64(s.Wins) / float64(decided)
	}
	if s.Wins > 0 {
		s.AvgWinPct = round2(winSum / float64(s.Wins))
	}
	if s.Losses > 0 {
		s.AvgLossPct = round2(lossSum / float64(s.Losses))
	}
	if grossLoss > 0 {
		s.ProfitFactor = round2(grossWin / grossLoss)
	}
	s.TotalPnl = round2(s.TotalPnl)
	s.WinRate = math.Round(s.WinRate*1000) / 1000
	return s
}

// Stats summarizes the whole ledger.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return computeStats(j.trades)
}

// StatsByVersion splits performance by the signal version that opened each
// trade, the live A/B readout.
func (j *Journal) StatsByVersion() map[string]Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	byVersion := make(map[string][]domain.PaperTrade)
	for _, t := range j.trades {
		v := t.SignalVersion
		if v == "" {
			v = "unversioned"
		}
		byVersion[v] = append(byVersion[v], t)
	}
	out := make(map[string]Stats, len(byVersion))
	for v, trades := range byVersion {
		out[v] = computeStats(trades)
	}
	return out
}

// KellySize computes the position size for a setup. The Kelly fraction comes
// from realized win rate and payoff, halved and capped; before enough closed
// trades exist a conservative default applies. Shares scale the fixed dollar
// risk budget by the fraction over the per-share stop distance.
func (j *Journal) KellySize(entry, stop float64) (pct float64, shares int) {
	stats := j.Stats()

	k := defaultKelly
	decided := stats.Wins + stats.Losses
	if decided >= minTradesForKelly && stats.AvgLossPct < 0 && stats.AvgWinPct > 0 {
		w := stats.WinRate
		r := stats.AvgWinPct / -stats.AvgLossPct
		if r > 0 {
			k = (w - (1-w)/r) / 2
		}
	}
	if k < 0 {
		k = 0
	}
	if k > halfKellyCap {
		k = halfKellyCap
	}

	riskPerShare := math.Abs(entry - stop)
	if riskPerShare <= 0 || k == 0 {
		return round2(k * 100), 0
	}
	shares = int(riskBudget * k / riskPerShare)
	if shares < 1 {
		shares = 1
	}
	return round2(k * 100), shares
}
