// Package learning implements the pattern-frequency failure-risk
// classification spec.md §4.6.3 describes, on top of internal/store's
// plain persistence of Learnings and PatternFrequency rows.
package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/taskforge-mcp/taskforge-mcp/internal/store"
)

// Risk-level thresholds (spec.md §4.6.3, §9: stated as-is, not derived
// from measurement — kept as unexported constants per the open-question
// decision in DESIGN.md).
const (
	riskThresholdHigh   = 0.75
	riskThresholdMedium = 0.50
	riskThresholdLow    = 0.25
)

// FailurePattern is one row of detect_failure_patterns' output.
type FailurePattern struct {
	Pattern     string  `json:"pattern"`
	Frequency   int     `json:"frequency"`
	FailureRate float64 `json:"failure_rate"`
	RiskLevel   string  `json:"risk_level"`
}

// DetectFailurePatterns returns patterns with at least minOccurrences
// observations whose failure_rate meets failureThreshold, ranked
// descending by failure_rate then frequency.
func DetectFailurePatterns(ctx context.Context, s *store.Store, minOccurrences int, failureThreshold float64) ([]FailurePattern, error) {
	all, err := s.AllPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}

	var out []FailurePattern
	for _, p := range all {
		if p.Frequency < minOccurrences {
			continue
		}
		rate := round2(float64(p.FailureCount) / float64(p.Frequency))
		if rate < failureThreshold {
			continue
		}
		out = append(out, FailurePattern{
			Pattern:     p.Pattern,
			Frequency:   p.Frequency,
			FailureRate: rate,
			RiskLevel:   classifyRate(rate, riskThresholdHigh, riskThresholdMedium),
		})
	}

	sortFailurePatterns(out)
	return out, nil
}

func sortFailurePatterns(ps []FailurePattern) {
	for i := 1; i < len(ps); i++ {
		for j := i; j > 0; j-- {
			a, b := ps[j-1], ps[j]
			swap := a.FailureRate < b.FailureRate ||
				(a.FailureRate == b.FailureRate && a.Frequency < b.Frequency)
			if !swap {
				break
			}
			ps[j-1], ps[j] = ps[j], ps[j-1]
		}
	}
}

// PatternRisk is check_pattern_risk's output.
type PatternRisk struct {
	IsRisky        bool    `json:"is_risky"`
	RiskLevel      string  `json:"risk_level"`
	FailureRate    float64 `json:"failure_rate"`
	Recommendation string  `json:"recommendation"`
}

// CheckPatternRisk applies the {0.25, 0.50, 0.75} threshold set to a
// single pattern (spec.md §4.6.3). Unknown or zero-frequency patterns are
// reported as not risky with no data.
func CheckPatternRisk(ctx context.Context, s *store.Store, pattern string) (*PatternRisk, error) {
	p, err := s.PatternByName(ctx, pattern)
	if err == store.ErrNotFound || (p != nil && p.Frequency == 0) {
		return &PatternRisk{
			RiskLevel:      "none",
			Recommendation: "No historical data",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading pattern: %w", err)
	}

	rate := round2(float64(p.FailureCount) / float64(p.Frequency))
	level := classifyRateWithLow(rate)
	isRisky := rate >= riskThresholdLow

	return &PatternRisk{
		IsRisky:        isRisky,
		RiskLevel:      level,
		FailureRate:    rate,
		Recommendation: recommendation(level, rate, p.Frequency),
	}, nil
}

func classifyRate(rate, high, medium float64) string {
	switch {
	case rate >= high:
		return "high"
	case rate >= medium:
		return "medium"
	default:
		return "low"
	}
}

func classifyRateWithLow(rate float64) string {
	switch {
	case rate >= riskThresholdHigh:
		return "high"
	case rate >= riskThresholdMedium:
		return "medium"
	case rate >= riskThresholdLow:
		return "low"
	default:
		return "low"
	}
}

func recommendation(level string, rate float64, n int) string {
	switch level {
	case "high":
		return fmt.Sprintf("This pattern fails %.0f%% of the time across %d observations; avoid it or pair it with extra review.", rate*100, n)
	case "medium":
		return fmt.Sprintf("This pattern has a moderate failure rate (%.0f%% of %d observations); proceed with caution.", rate*100, n)
	default:
		return fmt.Sprintf("This pattern has a low failure rate (%.0f%% of %d observations).", rate*100, n)
	}
}

// TrendingPattern is trending_patterns' output row.
type TrendingPattern struct {
	Pattern     string    `json:"pattern"`
	RecentCount int       `json:"recent_count"`
	Frequency   int       `json:"frequency"`
	SuccessRate float64   `json:"success_rate"`
	LastSeen    time.Time `json:"last_seen"`
}

// TrendingPatterns ranks patterns by how often they were observed within
// the last `days` days, merged with their overall success rate.
func TrendingPatterns(ctx context.Context, s *store.Store, days, limit int) ([]TrendingPattern, error) {
	all, err := s.AllPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading patterns: %w", err)
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	out := make([]TrendingPattern, 0, len(all))
	for _, p := range all {
		recent, err := s.PatternLearningCountSince(ctx, p.Pattern, since)
		if err != nil {
			return nil, err
		}
		if recent == 0 {
			continue
		}
		successRate := 0.0
		if p.Frequency > 0 {
			successRate = round2(float64(p.SuccessCount) / float64(p.Frequency))
		}
		out = append(out, TrendingPattern{
			Pattern:     p.Pattern,
			RecentCount: recent,
			Frequency:   p.Frequency,
			SuccessRate: successRate,
			LastSeen:    p.LastSeen,
		})
	}

	for i := 1; i < len(out); i++ {
		for j := i; j > 0; j-- {
			a, b := out[j-1], out[j]
			swap := a.RecentCount < b.RecentCount ||
				(a.RecentCount == b.RecentCount && a.LastSeen.Before(b.LastSeen))
			if !swap {
				break
			}
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
