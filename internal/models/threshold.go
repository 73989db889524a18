package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ParameterID 生命体征参数标识
type ParameterID string

const (
	ParamHR     ParameterID = "HR"      // 心率 bpm
	ParamBPMean ParameterID = "BP_Mean" // 平均动脉压 mmHg
	ParamRR     ParameterID = "RR"      // 呼吸频率 /min
	ParamSpO2   ParameterID = "SpO2"    // 血氧饱和度 %
	ParamTemp   ParameterID = "Temp"    // 体温 °C
)

// Parameters 已知参数（固定顺序）
var Parameters = []ParameterID{ParamHR, ParamBPMean, ParamRR, ParamSpO2, ParamTemp}

// ParameterUnits 参数单位
var ParameterUnits = map[ParameterID]string{
	ParamHR:     "bpm",
	ParamBPMean: "mmHg",
	ParamRR:     "/min",
	ParamSpO2:   "%",
	ParamTemp:   "°C",
}

// IsKnownParameter 判断参数是否已知
func IsKnownParameter(p ParameterID) bool {
	_, ok := ParameterUnits[p]
	return ok
}

// unsetLiteral JSON 中未设置边界的占位值
const unsetLiteral = "unset"

// Bound 范围边界，nil 表示 "unset"
type Bound = *float64

// Float 返回指向 v 的新指针
func Float(v float64) *float64 {
	return &v
}

// ParameterRange 参数阈值范围
// Min/Max 为 nil 时表示"尚未选择问题/风险等级"，下游必须跳过调整
type ParameterRange struct {
	Min  Bound  `json:"min"`
	Max  Bound  `json:"max"`
	Unit string `json:"unit"`
}

// NewRange 创建已设置的范围
func NewRange(min, max float64, unit string) ParameterRange {
	return ParameterRange{Min: Float(min), Max: Float(max), Unit: unit}
}

// UnsetRange 创建未设置的范围
func UnsetRange(unit string) ParameterRange {
	return ParameterRange{Unit: unit}
}

// IsUnset 任一边界未设置即视为 unset
func (r ParameterRange) IsUnset() bool {
	return r.Min == nil || r.Max == nil
}

// Clone 深拷贝（边界指针不共享）
func (r ParameterRange) Clone() ParameterRange {
	out := ParameterRange{Unit: r.Unit}
	if r.Min != nil {
		out.Min = Float(*r.Min)
	}
	if r.Max != nil {
		out.Max = Float(*r.Max)
	}
	return out
}

// Equal 按值比较
func (r ParameterRange) Equal(o ParameterRange) bool {
	return boundEqual(r.Min, o.Min) && boundEqual(r.Max, o.Max) && r.Unit == o.Unit
}

func boundEqual(a, b Bound) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (r ParameterRange) String() string {
	return fmt.Sprintf("{%s,%s %s}", formatBound(r.Min), formatBound(r.Max), r.Unit)
}

func formatBound(b Bound) string {
	if b == nil {
		return unsetLiteral
	}
	return strconv.FormatFloat(*b, 'f', -1, 64)
}

// MarshalJSON unset 边界编码为 "unset"
func (r ParameterRange) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"min":`)
	writeBound(&buf, r.Min)
	buf.WriteString(`,"max":`)
	writeBound(&buf, r.Max)
	buf.WriteString(`,"unit":`)
	unit, err := json.Marshal(r.Unit)
	if err != nil {
		return nil, err
	}
	buf.Write(unit)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeBound(buf *bytes.Buffer, b Bound) {
	if b == nil {
		buf.WriteString(`"` + unsetLiteral + `"`)
		return
	}
	buf.WriteString(strconv.FormatFloat(*b, 'f', -1, 64))
}

// UnmarshalJSON 接受数字、"unset" 和 null
func (r *ParameterRange) UnmarshalJSON(data []byte) error {
	var raw struct {
		Min  json.RawMessage `json:"min"`
		Max  json.RawMessage `json:"max"`
		Unit string          `json:"unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	min, err := parseBound(raw.Min)
	if err != nil {
		return fmt.Errorf("invalid min: %w", err)
	}
	max, err := parseBound(raw.Max)
	if err != nil {
		return fmt.Errorf("invalid max: %w", err)
	}
	r.Min, r.Max, r.Unit = min, max, raw.Unit
	return nil
}

func parseBound(raw json.RawMessage) (Bound, error) {
	s := string(bytes.TrimSpace(raw))
	if s == "" || s == "null" || s == `"`+unsetLiteral+`"` {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RangeMap 参数 → 范围
type RangeMap map[ParameterID]ParameterRange

// Clone 深拷贝
func (m RangeMap) Clone() RangeMap {
	out := make(RangeMap, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

// Equal 按值比较
func (m RangeMap) Equal(o RangeMap) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
