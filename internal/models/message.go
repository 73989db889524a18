package models

import "time"

// MessageThresholdsChanged 阈值变更消息类型
const MessageThresholdsChanged = "thresholds-changed"

// RiskLevels 各器官系统的监护强度（字符串形式）
type RiskLevels struct {
	Circulatory string `json:"circulatory"`
	Respiratory string `json:"respiratory"`
	Temperature string `json:"temperature"`
}

// ThresholdMessage 发往通知通道的阈值消息
type ThresholdMessage struct {
	PatientID  string                         `json:"patientId"`
	BedNumber  *string                        `json:"bedNumber"`
	ChangeType ChangeType                     `json:"changeType"`
	RiskLevels RiskLevels                     `json:"riskLevels"`
	Thresholds map[ParameterID]ParameterRange `json:"thresholds"`
	DataSource DataSource                     `json:"dataSource"`
	Timestamp  string                         `json:"timestamp"`
}

// NewThresholdMessage 由生效值构建消息
func NewThresholdMessage(values *EffectiveValues, changeType ChangeType, now time.Time) *ThresholdMessage {
	return &ThresholdMessage{
		PatientID:  values.PatientID,
		BedNumber:  values.BedNumber,
		ChangeType: changeType,
		RiskLevels: RiskLevels{
			Circulatory: values.OrganLevels[OrganCirculatory].String(),
			Respiratory: values.OrganLevels[OrganRespiratory].String(),
			Temperature: values.OrganLevels[OrganTemperature].String(),
		},
		Thresholds: values.ParameterRanges.Clone(),
		DataSource: values.DataSource,
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
	}
}

// FingerprintFields 去重指纹字段（不含阈值与时间戳）
func (m *ThresholdMessage) FingerprintFields() []string {
	bed := ""
	if m.BedNumber != nil {
		bed = *m.BedNumber
	}
	return []string{
		m.PatientID,
		bed,
		string(m.ChangeType),
		m.RiskLevels.Circulatory,
		m.RiskLevels.Respiratory,
		m.RiskLevels.Temperature,
	}
}
