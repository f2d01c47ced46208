package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aicodeaudit/auditor/internal/model"
)

func TestCalculateNeutralContextYieldsHighScore(t *testing.T) {
	finding := model.Finding{Category: model.CategoryInjection}
	result := Calculate(finding, Context{})
	assert.InDelta(t, 0.8, result.Final, 0.2)
}

func TestCalculateFrameworkMitigationLowersScore(t *testing.T) {
	finding := model.Finding{Category: model.CategoryInjection}
	baseline := Calculate(finding, Context{})
	mitigated := Calculate(finding, Context{Frameworks: []string{"Django"}})
	assert.Less(t, mitigated.Final, baseline.Final)
}

func TestCalculateDAOLayerLowersAuthConfidence(t *testing.T) {
	finding := model.Finding{Category: model.CategoryAuth}
	baseline := Calculate(finding, Context{ArchitectureLayer: "service"})
	dao := Calculate(finding, Context{ArchitectureLayer: "dao"})
	assert.Less(t, dao.Final, baseline.Final)
}

func TestCalculateRiskBucketsMatchThresholds(t *testing.T) {
	assert.Equal(t, RiskCritical, riskLevel(0.9))
	assert.Equal(t, RiskHigh, riskLevel(0.7))
	assert.Equal(t, RiskMedium, riskLevel(0.5))
	assert.Equal(t, RiskLow, riskLevel(0.2))
}

func TestCalculateClampsToUnitInterval(t *testing.T) {
	finding := model.Finding{Category: model.CategoryOther}
	result := Calculate(finding, Context{})
	assert.GreaterOrEqual(t, result.Final, 0.0)
	assert.LessOrEqual(t, result.Final, 1.0)
}

func TestCalculateLongerCallChainLowersComplexityFactor(t *testing.T) {
	finding := model.Finding{Category: model.CategoryOther}
	short := Calculate(finding, Context{CallChain: []string{"a"}})
	long := Calculate(finding, Context{CallChain: []string{"a", "b", "c", "d", "e", "f", "g"}})
	assert.Less(t, long.Factors["code_complexity"], short.Factors["code_complexity"])
}

func TestCalculateContextCompletenessScalesWithFieldsPresent(t *testing.T) {
	finding := model.Finding{Category: model.CategoryOther}
	empty := Calculate(finding, Context{})
	full := Calculate(finding, Context{
		FilePath:          "a.py",
		Frameworks:        []string{"flask"},
		ArchitectureLayer: "controller",
		TechStack:         []string{"python"},
		SecurityConfig:    map[string]bool{"csrf": true},
	})
	assert.Greater(t, full.Factors["context_completeness"], empty.Factors["context_completeness"])
}
