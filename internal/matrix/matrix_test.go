package matrix

import (
	"testing"

	m "wisefido-threshold/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func strPtr(s string) *string { return &s }

func TestResolve_Deterministic(t *testing.T) {
	x := NewMatrix(zap.NewNop())

	for _, e := range x.Entries() {
		first := x.Resolve(strPtr(e.ProblemID), e.RiskLevel)
		second := x.Resolve(strPtr(e.ProblemID), e.RiskLevel)

		assert.True(t, first.Known)
		assert.Equal(t, first, second, "problem=%s risk=%s", e.ProblemID, e.RiskLevel)
		assert.Len(t, first.Ranges, len(m.Parameters))
	}
	assert.Len(t, x.Entries(), 15)
}

func TestResolve_ReturnsFreshMaps(t *testing.T) {
	x := NewMatrix(zap.NewNop())

	first := x.Resolve(strPtr("sepsis"), m.RiskHigh)
	*first.Ranges[m.ParamHR].Min = 0
	first.OrganLevels[m.OrganCirculatory] = m.LevelLow

	second := x.Resolve(strPtr("sepsis"), m.RiskHigh)
	assert.Equal(t, 70.0, *second.Ranges[m.ParamHR].Min)
	assert.Equal(t, m.LevelHigh, second.OrganLevels[m.OrganCirculatory])
}

func TestResolve_SepsisHigh(t *testing.T) {
	x := NewMatrix(zap.NewNop())

	res := x.Resolve(strPtr("sepsis"), m.RiskHigh)

	require.True(t, res.Known)
	assert.True(t, res.Ranges[m.ParamHR].Equal(m.NewRange(70, 120, "bpm")))
	assert.True(t, res.Ranges[m.ParamBPMean].Equal(m.NewRange(50, 80, "mmHg")))
}

func TestResolve_NilProblemIsUnset(t *testing.T) {
	x := NewMatrix(zap.NewNop())

	res := x.Resolve(nil, m.RiskHigh)

	assert.False(t, res.Known)
	for _, p := range m.Parameters {
		assert.True(t, res.Ranges[p].IsUnset(), "parameter %s", p)
		assert.Equal(t, m.ParameterUnits[p], res.Ranges[p].Unit)
	}
	assert.Equal(t, m.AllLow(), res.OrganLevels)
}

func TestResolve_UnknownProblemLogsWarning(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	x := NewMatrix(zap.New(core))

	res := x.Resolve(strPtr("dragon_pox"), m.RiskMid)

	assert.False(t, res.Known)
	assert.True(t, res.Ranges[m.ParamHR].IsUnset())
	assert.Equal(t, 1, logs.FilterMessageSnippet("Unknown problem").Len())
}

func TestResolve_UnknownRiskFallsBackToAllLow(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	x := NewMatrix(zap.New(core))

	res := x.Resolve(strPtr("sepsis"), m.RiskLevel("critical"))

	assert.False(t, res.Known)
	assert.Equal(t, m.AllLow(), res.OrganLevels)
	assert.True(t, res.Ranges[m.ParamBPMean].IsUnset())
	assert.Equal(t, 1, logs.Len())
}

func TestProblems_Sorted(t *testing.T) {
	x := NewMatrix(zap.NewNop())

	assert.Equal(t, []string{"copd", "heart_failure", "pneumonia", "post_op", "sepsis"}, x.Problems())
	assert.True(t, x.IsKnownProblem("copd"))
	assert.False(t, x.IsKnownProblem("flu"))
}
