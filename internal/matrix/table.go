package matrix

import m "wisefido-threshold/internal/models"

// row 单个 (问题, 风险等级) 组合的手工配置
type row struct {
	hr, bpMean, rr, spo2, temp [2]float64
	organs                     [3]m.OrganLevel // circulatory, respiratory, temperature
}

// defaultTable 规则矩阵（示例数据，未经临床验证）
// 每个组合单独编写，不做插值
var defaultTable = map[string]map[m.RiskLevel]row{
	"sepsis": {
		m.RiskLow: {
			hr: [2]float64{60, 110}, bpMean: [2]float64{60, 100}, rr: [2]float64{10, 22},
			spo2: [2]float64{92, 100}, temp: [2]float64{36.0, 38.3},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelLow, m.LevelMid},
		},
		m.RiskMid: {
			hr: [2]float64{65, 115}, bpMean: [2]float64{55, 90}, rr: [2]float64{10, 24},
			spo2: [2]float64{92, 100}, temp: [2]float64{36.0, 38.0},
			organs: [3]m.OrganLevel{m.LevelHigh, m.LevelMid, m.LevelMid},
		},
		m.RiskHigh: {
			hr: [2]float64{70, 120}, bpMean: [2]float64{50, 80}, rr: [2]float64{12, 26},
			spo2: [2]float64{94, 100}, temp: [2]float64{36.0, 38.0},
			organs: [3]m.OrganLevel{m.LevelHigh, m.LevelHigh, m.LevelHigh},
		},
	},
	"pneumonia": {
		m.RiskLow: {
			hr: [2]float64{55, 105}, bpMean: [2]float64{65, 105}, rr: [2]float64{10, 24},
			spo2: [2]float64{90, 100}, temp: [2]float64{35.8, 38.5},
			organs: [3]m.OrganLevel{m.LevelLow, m.LevelMid, m.LevelMid},
		},
		m.RiskMid: {
			hr: [2]float64{60, 110}, bpMean: [2]float64{60, 100}, rr: [2]float64{12, 26},
			spo2: [2]float64{91, 100}, temp: [2]float64{36.0, 38.3},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelHigh, m.LevelMid},
		},
		m.RiskHigh: {
			hr: [2]float64{60, 115}, bpMean: [2]float64{60, 95}, rr: [2]float64{12, 28},
			spo2: [2]float64{92, 100}, temp: [2]float64{36.0, 38.0},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelHigh, m.LevelHigh},
		},
	},
	"heart_failure": {
		m.RiskLow: {
			hr: [2]float64{50, 100}, bpMean: [2]float64{65, 100}, rr: [2]float64{10, 22},
			spo2: [2]float64{90, 100}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelLow, m.LevelLow},
		},
		m.RiskMid: {
			hr: [2]float64{55, 100}, bpMean: [2]float64{65, 95}, rr: [2]float64{10, 24},
			spo2: [2]float64{92, 100}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelHigh, m.LevelMid, m.LevelLow},
		},
		m.RiskHigh: {
			hr: [2]float64{55, 95}, bpMean: [2]float64{70, 95}, rr: [2]float64{12, 24},
			spo2: [2]float64{93, 100}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelHigh, m.LevelHigh, m.LevelLow},
		},
	},
	"copd": {
		m.RiskLow: {
			hr: [2]float64{55, 105}, bpMean: [2]float64{65, 105}, rr: [2]float64{10, 26},
			spo2: [2]float64{88, 96}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelLow, m.LevelMid, m.LevelLow},
		},
		m.RiskMid: {
			hr: [2]float64{55, 110}, bpMean: [2]float64{65, 100}, rr: [2]float64{12, 28},
			spo2: [2]float64{88, 95}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelHigh, m.LevelLow},
		},
		m.RiskHigh: {
			hr: [2]float64{60, 110}, bpMean: [2]float64{65, 100}, rr: [2]float64{12, 30},
			spo2: [2]float64{88, 94}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelHigh, m.LevelMid},
		},
	},
	"post_op": {
		m.RiskLow: {
			hr: [2]float64{50, 100}, bpMean: [2]float64{65, 105}, rr: [2]float64{10, 20},
			spo2: [2]float64{94, 100}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelLow, m.LevelLow, m.LevelLow},
		},
		m.RiskMid: {
			hr: [2]float64{55, 105}, bpMean: [2]float64{65, 100}, rr: [2]float64{10, 22},
			spo2: [2]float64{94, 100}, temp: [2]float64{35.5, 38.0},
			organs: [3]m.OrganLevel{m.LevelMid, m.LevelMid, m.LevelLow},
		},
		m.RiskHigh: {
			hr: [2]float64{60, 110}, bpMean: [2]float64{65, 95}, rr: [2]float64{12, 24},
			spo2: [2]float64{95, 100}, temp: [2]float64{36.0, 38.0},
			organs: [3]m.OrganLevel{m.LevelHigh, m.LevelMid, m.LevelMid},
		},
	},
}

func (r row) ranges() m.RangeMap {
	bounds := map[m.ParameterID][2]float64{
		m.ParamHR:     r.hr,
		m.ParamBPMean: r.bpMean,
		m.ParamRR:     r.rr,
		m.ParamSpO2:   r.spo2,
		m.ParamTemp:   r.temp,
	}
	out := make(m.RangeMap, len(bounds))
	for p, b := range bounds {
		out[p] = m.NewRange(b[0], b[1], m.ParameterUnits[p])
	}
	return out
}

func (r row) organLevels() m.OrganLevels {
	return m.OrganLevels{
		m.OrganCirculatory: r.organs[0],
		m.OrganRespiratory: r.organs[1],
		m.OrganTemperature: r.organs[2],
	}
}
