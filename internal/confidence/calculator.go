// Package confidence implements the six-factor Confidence Calculator
// (spec §4.M), adjusting an LLM-reported finding's confidence using
// framework/architecture/complexity/pattern/context/history signals.
// Grounded on the teacher's scoring style in
// pkg/agent/controller/scoring.go (weighted-factor accumulation with a
// clamp and a discrete risk bucketing), adapted from its iteration-quality
// scoring domain to security-finding confidence.
package confidence

import (
	"strings"

	"github.com/aicodeaudit/auditor/internal/model"
)

// Context is the supplied evaluation context (spec §4.M).
type Context struct {
	FilePath            string
	Frameworks          []string
	ArchitectureLayer   string
	TechStack           []string
	SecurityConfig      map[string]bool
	CallChain           []string
}

// RiskLevel buckets a final confidence score.
type RiskLevel string

const (
	RiskCritical RiskLevel = "critical"
	RiskHigh     RiskLevel = "high"
	RiskMedium   RiskLevel = "medium"
	RiskLow      RiskLevel = "low"
)

// Result is the calculator's output: the final score, per-factor
// breakdown, and risk bucket.
type Result struct {
	Final   float64
	Factors map[string]float64
	Risk    RiskLevel
}

const (
	weightFrameworkProtection       = 0.25
	weightArchitectureAppropriate   = 0.15
	weightCodeComplexity            = 0.10
	weightPatternReliability        = 0.15
	weightContextCompleteness       = 0.10
	weightHistoricalAccuracy        = 0.25
)

// frameworksWithBuiltinMitigation maps a finding category to frameworks
// known to mitigate it out of the box (e.g. an ORM mitigating raw SQL
// injection), lowering framework_protection's contribution to confidence.
var frameworksWithBuiltinMitigation = map[model.Category][]string{
	model.CategoryInjection: {"django", "rails", "sqlalchemy", "gorm", "jpa", "hibernate"},
	model.CategorySession:   {"django", "rails", "spring-security"},
}

// daoLikeLayers is where authorization/session findings are commonly
// false positives — the concern belongs to a higher layer.
var daoLikeLayers = map[string]bool{"dao": true, "repository": true, "model": true}

// Calculate scores a finding against ctx, producing the final confidence
// and per-factor breakdown (spec §4.M).
func Calculate(finding model.Finding, ctx Context) Result {
	factors := map[string]float64{
		"framework_protection":         frameworkProtection(finding, ctx),
		"architecture_appropriateness": architectureAppropriateness(finding, ctx),
		"code_complexity":              codeComplexity(ctx),
		"pattern_reliability":          patternReliability(finding),
		"context_completeness":         contextCompleteness(ctx),
		"historical_accuracy":          historicalAccuracy(finding),
	}

	final := weightFrameworkProtection*factors["framework_protection"] +
		weightArchitectureAppropriate*factors["architecture_appropriateness"] +
		weightCodeComplexity*factors["code_complexity"] +
		weightPatternReliability*factors["pattern_reliability"] +
		weightContextCompleteness*factors["context_completeness"] +
		weightHistoricalAccuracy*factors["historical_accuracy"]

	final = clip(final, 0, 1)

	return Result{Final: final, Factors: factors, Risk: riskLevel(final)}
}

func frameworkProtection(finding model.Finding, ctx Context) float64 {
	mitigators, ok := frameworksWithBuiltinMitigation[finding.Category]
	if !ok {
		return 1.0
	}
	for _, fw := range ctx.Frameworks {
		for _, m := range mitigators {
			if strings.EqualFold(fw, m) {
				return 0.4 // framework likely already mitigates; lower confidence in raw finding
			}
		}
	}
	return 1.0
}

func architectureAppropriateness(finding model.Finding, ctx Context) float64 {
	layer := strings.ToLower(ctx.ArchitectureLayer)
	if daoLikeLayers[layer] && (finding.Category == model.CategoryAuth || finding.Category == model.CategorySession) {
		return 0.3
	}
	return 1.0
}

func codeComplexity(ctx Context) float64 {
	// Proxy: longer call chains correlate with harder-to-verify findings.
	switch {
	case len(ctx.CallChain) == 0:
		return 1.0
	case len(ctx.CallChain) <= 3:
		return 0.8
	case len(ctx.CallChain) <= 6:
		return 0.6
	default:
		return 0.4
	}
}

// patternPrecision is a static calibration of each category's historical
// true-positive rate, standing in for a learned model.
var patternPrecision = map[model.Category]float64{
	model.CategoryInjection:       0.9,
	model.CategoryAuth:            0.75,
	model.CategorySensitiveData:   0.8,
	model.CategoryCrypto:          0.85,
	model.CategoryInputValidation: 0.7,
	model.CategorySession:         0.7,
	model.CategoryConfig:          0.6,
	model.CategoryQuality:         0.5,
	model.CategoryDependency:      0.65,
	model.CategoryOther:           0.5,
}

func patternReliability(finding model.Finding) float64 {
	if p, ok := patternPrecision[finding.Category]; ok {
		return p
	}
	return 0.5
}

func contextCompleteness(ctx Context) float64 {
	fields := 0
	total := 5.0
	if ctx.FilePath != "" {
		fields++
	}
	if len(ctx.Frameworks) > 0 {
		fields++
	}
	if ctx.ArchitectureLayer != "" {
		fields++
	}
	if len(ctx.TechStack) > 0 {
		fields++
	}
	if len(ctx.SecurityConfig) > 0 {
		fields++
	}
	return float64(fields) / total
}

// historicalAccuracy mirrors patternReliability absent a real feedback
// loop; kept as a distinct factor per spec §4.M so future calibration
// data can diverge the two.
func historicalAccuracy(finding model.Finding) float64 {
	return patternReliability(finding)
}

func riskLevel(score float64) RiskLevel {
	switch {
	case score >= 0.85:
		return RiskCritical
	case score >= 0.65:
		return RiskHigh
	case score >= 0.4:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
