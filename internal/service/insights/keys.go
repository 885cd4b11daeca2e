package insights

import (
	"strings"

	"MarketPulse/internal/domain/repository"
)

const (
	KeySentiment = "sentiment"
	KeyFlipZones = "flip_zones"

	familySummary  = "summary"
	familyPatterns = "patterns"
)

func SummaryKey(tf repository.Timeframe) string { return familySummary + ":" + string(tf) }

func PatternsKey(tf repository.Timeframe) string { return familyPatterns + ":" + string(tf) }

// canonicalKeys lists every key the service computes or names itself.
func canonicalKeys() []string {
	keys := []string{KeySentiment, KeyFlipZones}
	for _, tf := range repository.Timeframes {
		keys = append(keys, SummaryKey(tf), PatternsKey(tf))
	}
	return keys
}

// NormalizeKey maps ETL push keys such as "summaryDaily", "patterns5m" or
// "flipZones" onto cache keys. Canonical and unknown keys pass through.
func NormalizeKey(k string) string {
	k = strings.TrimSpace(k)
	switch strings.ToLower(k) {
	case "flipzones", "flip_zones":
		return KeyFlipZones
	case "sentiment":
		return KeySentiment
	}
	if strings.Contains(k, ":") {
		return k
	}
	for _, family := range []string{familySummary, familyPatterns} {
		if !strings.HasPrefix(k, family) || len(k) == len(family) {
			continue
		}
		token := strings.ToLower(k[len(family):])
		tf := repository.NormalizeTimeframe(token, "")
		if tf != "" {
			return family + ":" + string(tf)
		}
	}
	return k
}
