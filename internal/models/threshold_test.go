package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParameterRange_JSONUnset(t *testing.T) {
	data, err := json.Marshal(UnsetRange("bpm"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":"unset","max":"unset","unit":"bpm"}`, string(data))

	var r ParameterRange
	require.NoError(t, json.Unmarshal([]byte(`{"min":null,"max":"unset","unit":"bpm"}`), &r))
	assert.True(t, r.IsUnset())

	require.NoError(t, json.Unmarshal([]byte(`{"min":70,"max":120.5,"unit":"bpm"}`), &r))
	assert.True(t, r.Equal(NewRange(70, 120.5, "bpm")))
}

func TestParameterRange_UnmarshalRejectsGarbage(t *testing.T) {
	var r ParameterRange
	assert.Error(t, json.Unmarshal([]byte(`{"min":"low","max":1,"unit":"bpm"}`), &r))
}

func TestParameterRange_CloneDoesNotShareBounds(t *testing.T) {
	orig := NewRange(70, 120, "bpm")
	c := orig.Clone()
	*c.Min = 10

	assert.Equal(t, 70.0, *orig.Min)
}

func TestOrganLevel_ShiftClamps(t *testing.T) {
	assert.Equal(t, LevelHigh, LevelMid.Shift(5))
	assert.Equal(t, LevelLow, LevelMid.Shift(-3))
	assert.Equal(t, LevelMid, LevelLow.Shift(1))
	assert.Equal(t, LevelHigh, LevelHigh.Shift(0))
}

func TestOrganLevel_JSON(t *testing.T) {
	data, err := json.Marshal(OrganLevels{OrganCirculatory: LevelHigh})
	require.NoError(t, err)
	assert.JSONEq(t, `{"circulatory":"high"}`, string(data))

	var l OrganLevel
	assert.Error(t, json.Unmarshal([]byte(`"extreme"`), &l))
}

func TestNewThresholdMessage(t *testing.T) {
	bed := "B-12"
	values := &EffectiveValues{
		PatientID: "p-1",
		BedNumber: &bed,
		ParameterRanges: RangeMap{
			ParamHR: NewRange(70, 140, "bpm"),
		},
		OrganLevels: OrganLevels{
			OrganCirculatory: LevelHigh,
			OrganRespiratory: LevelMid,
			OrganTemperature: LevelLow,
		},
		DataSource: SourceTagAdjusted,
	}
	now := time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC)

	msg := NewThresholdMessage(values, ChangeTagAdjustment, now)

	assert.Equal(t, "2026-10-15T08:30:00Z", msg.Timestamp)
	assert.Equal(t, RiskLevels{Circulatory: "high", Respiratory: "mid", Temperature: "low"}, msg.RiskLevels)
	assert.Equal(t, []string{"p-1", "B-12", "tag-adjustment", "high", "mid", "low"}, msg.FingerprintFields())

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"patientId":"p-1","bedNumber":"B-12","changeType":"tag-adjustment",
		"riskLevels":{"circulatory":"high","respiratory":"mid","temperature":"low"},
		"thresholds":{"HR":{"min":70,"max":140,"unit":"bpm"}},
		"dataSource":"tag-adjusted","timestamp":"2026-10-15T08:30:00Z"
	}`, string(data))
}
