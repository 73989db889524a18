package tagdelta

import (
	"sort"

	m "wisefido-threshold/internal/models"
)

// Result 增量调整结果
type Result struct {
	Ranges      m.RangeMap
	OrganLevels m.OrganLevels
	Applied     []m.Adjustment
}

// Engine 标签增量引擎（纯函数，无状态）
type Engine struct {
	deltas map[m.TagID]TagDelta
	order  map[m.TagID]int
}

// NewEngine 创建使用内置增量表的引擎
func NewEngine() *Engine {
	return newEngine(defaultDeltas, CanonicalOrder)
}

func newEngine(deltas map[m.TagID]TagDelta, canonical []m.TagID) *Engine {
	order := make(map[m.TagID]int, len(canonical))
	for i, tag := range canonical {
		order[tag] = i
	}
	return &Engine{deltas: deltas, order: order}
}

// KnownTags 已配置增量的标签（固定顺序）
func (e *Engine) KnownTags() []m.TagID {
	return e.Order(tagsOf(e.deltas))
}

// IsKnownTag 判断标签是否有增量配置
func (e *Engine) IsKnownTag(tag m.TagID) bool {
	_, ok := e.deltas[tag]
	return ok
}

// Delta 返回标签的增量表
func (e *Engine) Delta(tag m.TagID) (TagDelta, bool) {
	d, ok := e.deltas[tag]
	return d, ok
}

// Order 去重并按固定顺序排列标签：已知标签按规范顺序，未知标签按字典序排在后面
func (e *Engine) Order(tags []m.TagID) []m.TagID {
	seen := make(map[m.TagID]bool, len(tags))
	out := make([]m.TagID, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		oi, iKnown := e.order[out[i]]
		oj, jKnown := e.order[out[j]]
		switch {
		case iKnown && jKnown:
			return oi < oj
		case iKnown != jKnown:
			return iKnown
		default:
			return out[i] < out[j]
		}
	})
	return out
}

// Apply 将激活标签的增量叠加到基础范围与器官监护强度上
// 累加器总是从纯矩阵基础值的拷贝开始，从不复用上一次调整后的结果，
// 因此反复切换标签不会产生漂移。基础范围为 unset 的参数跳过调整。
func (e *Engine) Apply(activeTags []m.TagID, baseRanges m.RangeMap, baseOrgans m.OrganLevels, risk m.RiskLevel) Result {
	ranges := baseRanges.Clone()
	organs := baseOrgans.Clone()
	var applied []m.Adjustment

	for _, tag := range e.Order(activeTags) {
		delta, ok := e.deltas[tag]
		if !ok {
			continue
		}

		for _, p := range m.Parameters {
			byRisk, ok := delta.Ranges[p]
			if !ok {
				continue
			}
			d, ok := byRisk[risk]
			if !ok {
				continue
			}
			current, ok := ranges[p]
			if !ok || current.IsUnset() {
				applied = append(applied, m.Adjustment{
					Tag: tag, Parameter: p, MinDelta: d.MinDelta, MaxDelta: d.MaxDelta, Skipped: true,
				})
				continue
			}
			ranges[p] = m.ParameterRange{
				Min:  m.Float(*current.Min + d.MinDelta),
				Max:  m.Float(*current.Max + d.MaxDelta),
				Unit: current.Unit,
			}
			applied = append(applied, m.Adjustment{
				Tag: tag, Parameter: p, MinDelta: d.MinDelta, MaxDelta: d.MaxDelta,
			})
		}

		for _, o := range m.Organs {
			step, ok := delta.Organs[o]
			if !ok || step == 0 {
				continue
			}
			organs[o] = organs[o].Shift(step)
			applied = append(applied, m.Adjustment{Tag: tag, Organ: o, Step: step})
		}
	}

	return Result{Ranges: ranges, OrganLevels: organs, Applied: applied}
}

// AppliedAny 是否有实际生效（非跳过）的调整
func (r Result) AppliedAny() bool {
	for _, a := range r.Applied {
		if !a.Skipped {
			return true
		}
	}
	return false
}

func tagsOf(deltas map[m.TagID]TagDelta) []m.TagID {
	out := make([]m.TagID, 0, len(deltas))
	for t := range deltas {
		out = append(out, t)
	}
	return out
}
