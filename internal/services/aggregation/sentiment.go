package aggregation

import (
	"math"
	"sort"

	"MarketPulse/internal/domain/models"
	"MarketPulse/internal/state"
)

const (
	NoteCallSkew = "call skew"
	NotePutSkew  = "put skew"

	DefaultUOATopN = 6
)

// PutCall returns the put/call ratio by size and by open-interest delta.
// Either ratio is nil when its call side is zero.
func PutCall(prints []models.OrderFlowPrint) (volRatio, oiRatio *float64) {
	var callVol, putVol, callOI, putOI float64
	for _, p := range prints {
		if p.Side == models.SideCall {
			callVol += p.Size
			callOI += p.OIDelta
		} else {
			putVol += p.Size
			putOI += p.OIDelta
		}
	}
	return ratio(putVol, callVol), ratio(putOI, callOI)
}

// DarkPoolScore is the buy share of dark-pool notional, nil when there is none.
func DarkPoolScore(prints []models.DarkPoolPrint) *float64 {
	var buy, total float64
	for _, p := range prints {
		total += p.Notional
		if p.Side != models.SideSell {
			buy += p.Notional
		}
	}
	return ratio(buy, total)
}

// NewsSentiment averages the finite scores. Nil when there are none.
func NewsSentiment(scores []models.NewsScore) *models.NewsSentiment {
	var sum float64
	n := 0
	for _, s := range scores {
		if math.IsNaN(s.Score) || math.IsInf(s.Score, 0) {
			continue
		}
		sum += s.Score
		n++
	}
	if n == 0 {
		return nil
	}
	return &models.NewsSentiment{Score: Round(sum/float64(n), 2), Sample: n}
}

// RankUOA buckets prints by symbol, summing notional (size when notional is
// zero) per side, and ranks symbols by how far call/put skew is from 1.
// Calls-only symbols get a +Inf ratio and rank first; puts-only get 0.
func RankUOA(prints []models.OrderFlowPrint, topN int) []models.UOAEntry {
	type bucket struct{ call, put float64 }
	buckets := make(map[string]*bucket)
	for _, p := range prints {
		b, ok := buckets[p.Symbol]
		if !ok {
			b = &bucket{}
			buckets[p.Symbol] = b
		}
		amount := p.Notional
		if amount == 0 {
			amount = p.Size
		}
		if p.Side == models.SideCall {
			b.call += amount
		} else {
			b.put += amount
		}
	}

	entries := make([]models.UOAEntry, 0, len(buckets))
	for sym, b := range buckets {
		if b.call == 0 && b.put == 0 {
			continue
		}
		var r float64
		switch {
		case b.put == 0:
			r = math.Inf(1)
		case b.call == 0:
			r = 0
		default:
			r = Round(b.call/b.put, 2)
		}
		e := models.UOAEntry{Symbol: sym, Ratio: r, Call: b.call, Put: b.put}
		if r >= 1 {
			e.Side, e.Note = models.SideCall, NoteCallSkew
		} else {
			e.Side, e.Note = models.SidePut, NotePutSkew
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		di, dj := math.Abs(entries[i].Ratio-1), math.Abs(entries[j].Ratio-1)
		if di != dj {
			return di > dj
		}
		return entries[i].Symbol < entries[j].Symbol
	})
	if topN > 0 && len(entries) > topN {
		entries = entries[:topN]
	}
	return entries
}

// FilterOrderFlow keeps prints whose symbol is in universe. An empty universe keeps everything.
func FilterOrderFlow(prints []models.OrderFlowPrint, universe []string) []models.OrderFlowPrint {
	if len(universe) == 0 {
		return prints
	}
	allowed := make(map[string]struct{}, len(universe))
	for _, s := range universe {
		allowed[s] = struct{}{}
	}
	out := make([]models.OrderFlowPrint, 0, len(prints))
	for _, p := range prints {
		if _, ok := allowed[p.Symbol]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Sentiment composes the sentiment calculators over a snapshot.
func Sentiment(snap state.Snapshot, topN int) models.Sentiment {
	vol, oi := PutCall(snap.OrderFlow)
	return models.Sentiment{
		PutCallVolRatio: vol,
		PutCallOIRatio:  oi,
		DarkPoolScore:   DarkPoolScore(snap.DarkPool),
		NewsSentiment:   NewsSentiment(snap.News),
		OptionsUOA:      RankUOA(snap.OrderFlow, topN),
	}
}

// Summarize computes breadth, volume, thrust, trend, TRIN and IV rank over a snapshot.
func Summarize(snap state.Snapshot, p TrendPolicy, ivUnderlyings []string) models.Summary {
	breadth := Breadth(snap.Ticks)
	volume := Volume(snap.Ticks)
	return models.Summary{
		UpdatedAt: snap.Now,
		Breadth:   breadth,
		Volume:    volume,
		Thrust:    Thrust(volume),
		Trend:     Trend(snap.Ticks, p),
		IVRank:    IVRanks(snap.IV, ivUnderlyings),
		TRIN:      TRIN(breadth, volume),
	}
}
