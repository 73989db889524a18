package tagdelta

import m "wisefido-threshold/internal/models"

// RangeDelta 范围增量（加到 min/max 上）
type RangeDelta struct {
	MinDelta float64
	MaxDelta float64
}

// TagDelta 单个标签的增量表
// Ranges 以 (参数, 风险等级) 为键；Organs 为整数步进
type TagDelta struct {
	Ranges map[m.ParameterID]map[m.RiskLevel]RangeDelta
	Organs map[m.OrganID]int
}

const (
	TagSepsis       m.TagID = "sepsis"
	TagPneumonia    m.TagID = "pneumonia"
	TagHeartFailure m.TagID = "heart_failure"
	TagCOPD         m.TagID = "copd"
	TagBetaBlocker  m.TagID = "beta_blocker"
)

// CanonicalOrder 标签的固定迭代顺序
var CanonicalOrder = []m.TagID{TagSepsis, TagPneumonia, TagHeartFailure, TagCOPD, TagBetaBlocker}

func sameForAllRisks(d RangeDelta) map[m.RiskLevel]RangeDelta {
	return map[m.RiskLevel]RangeDelta{m.RiskLow: d, m.RiskMid: d, m.RiskHigh: d}
}

// defaultDeltas 标签增量表（示例数据，未经临床验证）
var defaultDeltas = map[m.TagID]TagDelta{
	TagSepsis: {
		Ranges: map[m.ParameterID]map[m.RiskLevel]RangeDelta{
			m.ParamHR: {
				m.RiskLow:  {MinDelta: 0, MaxDelta: 10},
				m.RiskMid:  {MinDelta: 0, MaxDelta: 15},
				m.RiskHigh: {MinDelta: 0, MaxDelta: 20},
			},
			m.ParamBPMean: {
				m.RiskLow:  {MinDelta: -5, MaxDelta: -5},
				m.RiskMid:  {MinDelta: -5, MaxDelta: -5},
				m.RiskHigh: {MinDelta: -10, MaxDelta: -10},
			},
			m.ParamTemp: sameForAllRisks(RangeDelta{MinDelta: 0, MaxDelta: 0.5}),
		},
		Organs: map[m.OrganID]int{m.OrganCirculatory: 1, m.OrganTemperature: 1},
	},
	TagPneumonia: {
		Ranges: map[m.ParameterID]map[m.RiskLevel]RangeDelta{
			m.ParamRR: {
				m.RiskLow:  {MinDelta: 0, MaxDelta: 4},
				m.RiskMid:  {MinDelta: 2, MaxDelta: 4},
				m.RiskHigh: {MinDelta: 2, MaxDelta: 6},
			},
			m.ParamSpO2: {
				m.RiskLow:  {MinDelta: -2, MaxDelta: 0},
				m.RiskMid:  {MinDelta: -2, MaxDelta: 0},
				m.RiskHigh: {MinDelta: -3, MaxDelta: 0},
			},
		},
		Organs: map[m.OrganID]int{m.OrganRespiratory: 1},
	},
	TagHeartFailure: {
		Ranges: map[m.ParameterID]map[m.RiskLevel]RangeDelta{
			m.ParamHR:     sameForAllRisks(RangeDelta{MinDelta: -5, MaxDelta: -5}),
			m.ParamBPMean: sameForAllRisks(RangeDelta{MinDelta: 5, MaxDelta: 0}),
		},
		Organs: map[m.OrganID]int{m.OrganCirculatory: 1},
	},
	TagCOPD: {
		Ranges: map[m.ParameterID]map[m.RiskLevel]RangeDelta{
			m.ParamSpO2: sameForAllRisks(RangeDelta{MinDelta: -4, MaxDelta: -4}),
			m.ParamRR:   sameForAllRisks(RangeDelta{MinDelta: 0, MaxDelta: 4}),
		},
		Organs: map[m.OrganID]int{m.OrganRespiratory: 1},
	},
	TagBetaBlocker: {
		Ranges: map[m.ParameterID]map[m.RiskLevel]RangeDelta{
			m.ParamHR: sameForAllRisks(RangeDelta{MinDelta: -10, MaxDelta: -10}),
		},
		Organs: map[m.OrganID]int{m.OrganCirculatory: -1},
	},
}
