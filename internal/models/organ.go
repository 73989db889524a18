package models

import (
	"encoding/json"
	"fmt"
)

// OrganID 器官系统标识
type OrganID string

const (
	OrganCirculatory OrganID = "circulatory"
	OrganRespiratory OrganID = "respiratory"
	OrganTemperature OrganID = "temperature"
)

// Organs 已知器官系统（固定顺序）
var Organs = []OrganID{OrganCirculatory, OrganRespiratory, OrganTemperature}

// OrganLevel 监护强度，low < mid < high
type OrganLevel int

const (
	LevelLow OrganLevel = iota
	LevelMid
	LevelHigh
)

var organLevelNames = [...]string{"low", "mid", "high"}

func (l OrganLevel) String() string {
	if l < LevelLow || l > LevelHigh {
		return fmt.Sprintf("OrganLevel(%d)", int(l))
	}
	return organLevelNames[l]
}

// Shift 按步进调整并钳制在 [low, high]
func (l OrganLevel) Shift(step int) OrganLevel {
	next := int(l) + step
	if next < int(LevelLow) {
		return LevelLow
	}
	if next > int(LevelHigh) {
		return LevelHigh
	}
	return OrganLevel(next)
}

// ParseOrganLevel 解析 "low"/"mid"/"high"
func ParseOrganLevel(s string) (OrganLevel, error) {
	for i, name := range organLevelNames {
		if name == s {
			return OrganLevel(i), nil
		}
	}
	return LevelLow, fmt.Errorf("unknown organ level %q", s)
}

func (l OrganLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *OrganLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseOrganLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// OrganLevels 器官 → 监护强度
type OrganLevels map[OrganID]OrganLevel

// Clone 拷贝
func (m OrganLevels) Clone() OrganLevels {
	out := make(OrganLevels, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// AllLow 保守默认值
func AllLow() OrganLevels {
	out := make(OrganLevels, len(Organs))
	for _, o := range Organs {
		out[o] = LevelLow
	}
	return out
}

// RiskLevel 风险等级
type RiskLevel string

const (
	RiskLow  RiskLevel = "low"
	RiskMid  RiskLevel = "mid"
	RiskHigh RiskLevel = "high"
)

// Valid 是否为已知风险等级
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMid, RiskHigh:
		return true
	}
	return false
}
