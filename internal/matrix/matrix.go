package matrix

import (
	"sort"

	m "wisefido-threshold/internal/models"

	"go.uber.org/zap"
)

// Resolution 矩阵查询结果
type Resolution struct {
	Ranges      m.RangeMap
	OrganLevels m.OrganLevels
	Known       bool // false 表示选择不完整或组合未知，已回退到保守默认值
}

// Entry 导出用的矩阵条目
type Entry struct {
	ProblemID   string
	RiskLevel   m.RiskLevel
	Ranges      m.RangeMap
	OrganLevels m.OrganLevels
}

// Matrix 规则矩阵：(问题, 风险等级) → 基础范围 + 器官监护强度
// 纯查询，无副作用，每次调用返回新的 map
type Matrix struct {
	table  map[string]map[m.RiskLevel]row
	logger *zap.Logger
}

// NewMatrix 创建使用内置规则表的矩阵
func NewMatrix(logger *zap.Logger) *Matrix {
	return &Matrix{
		table:  defaultTable,
		logger: logger,
	}
}

// Resolve 查询基础范围与器官监护强度
// problemID 为 nil 或未知：所有参数 unset，器官全部 low
// 已知问题 + 未知风险等级：器官全部 low，参数 unset，并记录警告
func (x *Matrix) Resolve(problemID *string, risk m.RiskLevel) Resolution {
	if problemID == nil || *problemID == "" {
		return unsetResolution()
	}

	byRisk, ok := x.table[*problemID]
	if !ok {
		x.logger.Warn("Unknown problem, falling back to unset ranges",
			zap.String("problem_id", *problemID),
			zap.String("risk_level", string(risk)),
		)
		return unsetResolution()
	}

	r, ok := byRisk[risk]
	if !ok {
		x.logger.Warn("Unknown risk level for problem, falling back to all-low organ levels",
			zap.String("problem_id", *problemID),
			zap.String("risk_level", string(risk)),
		)
		return unsetResolution()
	}

	return Resolution{
		Ranges:      r.ranges(),
		OrganLevels: r.organLevels(),
		Known:       true,
	}
}

// Problems 已知问题列表（字典序）
func (x *Matrix) Problems() []string {
	out := make([]string, 0, len(x.table))
	for p := range x.table {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsKnownProblem 判断问题是否在矩阵中
func (x *Matrix) IsKnownProblem(problemID string) bool {
	_, ok := x.table[problemID]
	return ok
}

// Entries 按问题、风险等级顺序枚举全部条目
func (x *Matrix) Entries() []Entry {
	risks := []m.RiskLevel{m.RiskLow, m.RiskMid, m.RiskHigh}
	var out []Entry
	for _, p := range x.Problems() {
		for _, risk := range risks {
			r, ok := x.table[p][risk]
			if !ok {
				continue
			}
			out = append(out, Entry{
				ProblemID:   p,
				RiskLevel:   risk,
				Ranges:      r.ranges(),
				OrganLevels: r.organLevels(),
			})
		}
	}
	return out
}

func unsetResolution() Resolution {
	ranges := make(m.RangeMap, len(m.Parameters))
	for _, p := range m.Parameters {
		ranges[p] = m.UnsetRange(m.ParameterUnits[p])
	}
	return Resolution{
		Ranges:      ranges,
		OrganLevels: m.AllLow(),
	}
}
