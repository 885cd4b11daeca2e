package aggregation

import "MarketPulse/internal/domain/models"

// Breadth counts advancers, decliners and unchanged symbols by last - prevClose.
func Breadth(ticks map[string]models.Tick) models.Breadth {
	var b models.Breadth
	for _, t := range ticks {
		switch ch := t.Change(); {
		case ch > 0:
			b.Advancers++
		case ch < 0:
			b.Decliners++
		default:
			b.Unchanged++
		}
	}
	return b
}

// Volume sums up/down volume per symbol. A symbol with explicit cumulative
// up/down counters contributes those; otherwise its whole volume goes to the
// up or down bucket by the sign of its change. Unchanged symbols without
// counters only add to the total.
func Volume(ticks map[string]models.Tick) models.Volume {
	var v models.Volume
	for _, t := range ticks {
		explicit := t.UpVolume + t.DownVolume
		if explicit > 0 {
			v.Up += t.UpVolume
			v.Down += t.DownVolume
			v.Total += max(t.Volume, explicit)
			continue
		}
		v.Total += t.Volume
		switch ch := t.Change(); {
		case ch > 0:
			v.Up += t.Volume
		case ch < 0:
			v.Down += t.Volume
		}
	}
	return v
}

// Thrust is the share of directional volume on advancing symbols, in [0, 1].
func Thrust(v models.Volume) float64 {
	return Round(v.Up/max(1, v.Up+v.Down), 4)
}

// TRIN is the Arms index (adv/dec) / (upVol/downVol). Nil with no directional symbols.
func TRIN(b models.Breadth, v models.Volume) *float64 {
	if b.Advancers+b.Decliners == 0 {
		return nil
	}
	adRatio := float64(b.Advancers) / max(1, float64(b.Decliners))
	volRatio := v.Up / max(1, v.Down)
	if volRatio == 0 {
		volRatio = 1
	}
	return ptr(Round(adRatio/volRatio, 2))
}
