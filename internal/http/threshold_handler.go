package httpapi

import (
	"context"
	"net/http"

	"wisefido-threshold/internal/effective"
	"wisefido-threshold/internal/export"
	"wisefido-threshold/internal/matrix"
	m "wisefido-threshold/internal/models"
	"wisefido-threshold/internal/repository"
	"wisefido-threshold/internal/service"
	"wisefido-threshold/internal/tagdelta"

	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

// ThresholdAPI 阈值服务（service.ThresholdService 实现）
type ThresholdAPI interface {
	GetEffectiveValues(ctx context.Context, patientID string, opts effective.Options) (*m.EffectiveValues, error)
	ToggleConditionTag(ctx context.Context, patientID string, tagID m.TagID, desired bool) (*service.ToggleResult, error)
	SetManualOverride(ctx context.Context, patientID string, parameter m.ParameterID, rng m.ParameterRange, source string) error
	ClearManualOverrides(ctx context.Context, patientID string, reason string) error
	SetProblemAndRisk(ctx context.Context, patientID string, problemID *string, risk m.RiskLevel) error
	ListOverrides(ctx context.Context, patientID string) (m.Overrides, error)
	ActiveTags(ctx context.Context, patientID string) ([]m.TagID, error)
	GetContext(ctx context.Context, patientID string) (*m.PatientContext, error)
}

// OverrideEventLister 覆盖审计查询；可为 nil
type OverrideEventLister interface {
	ListEvents(ctx context.Context, patientID string, limit int) ([]repository.OverrideEvent, error)
}

// ThresholdHandler 阈值 HTTP 处理器
type ThresholdHandler struct {
	svc    ThresholdAPI
	events OverrideEventLister
	matrix *matrix.Matrix
	engine *tagdelta.Engine
	logger *zap.Logger
}

func NewThresholdHandler(svc ThresholdAPI, events OverrideEventLister, mx *matrix.Matrix, engine *tagdelta.Engine, logger *zap.Logger) *ThresholdHandler {
	return &ThresholdHandler{svc: svc, events: events, matrix: mx, engine: engine, logger: logger}
}

func (h *ThresholdHandler) fail(w http.ResponseWriter, op string, patientID string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Threshold request failed",
			zap.String("op", op),
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
	}
	writeJSON(w, status, Fail(err.Error()))
}

// GetEffective 生效值
func (h *ThresholdHandler) GetEffective(w http.ResponseWriter, r *http.Request, patientID string) {
	opts := effective.Options{ForceRefresh: parseBool(r.URL.Query().Get("refresh"))}
	v, err := h.svc.GetEffectiveValues(r.Context(), patientID, opts)
	if err != nil {
		h.fail(w, "get_effective", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(v))
}

// GetTags 当前激活标签
func (h *ThresholdHandler) GetTags(w http.ResponseWriter, r *http.Request, patientID string) {
	tags, err := h.svc.ActiveTags(r.Context(), patientID)
	if err != nil {
		h.fail(w, "get_tags", patientID, err)
		return
	}
	if tags == nil {
		tags = []m.TagID{}
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{"active_tags": h.engine.Order(tags)}))
}

type toggleRequest struct {
	TagID  string `json:"tag_id"`
	Active *bool  `json:"active"`
}

// ToggleTag 切换标签
func (h *ThresholdHandler) ToggleTag(w http.ResponseWriter, r *http.Request, patientID string) {
	var req toggleRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if req.Active == nil {
		writeJSON(w, http.StatusBadRequest, Fail("active is required"))
		return
	}
	res, err := h.svc.ToggleConditionTag(r.Context(), patientID, m.TagID(req.TagID), *req.Active)
	if err != nil {
		h.fail(w, "toggle_tag", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// ListOverrides 当前覆盖
func (h *ThresholdHandler) ListOverrides(w http.ResponseWriter, r *http.Request, patientID string) {
	overrides, err := h.svc.ListOverrides(r.Context(), patientID)
	if err != nil {
		h.fail(w, "list_overrides", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(overrides))
}

type overrideRequest struct {
	Parameter string   `json:"parameter"`
	Min       *float64 `json:"min"`
	Max       *float64 `json:"max"`
	Unit      string   `json:"unit"`
	Source    string   `json:"source"`
}

// SetOverride 设置覆盖
func (h *ThresholdHandler) SetOverride(w http.ResponseWriter, r *http.Request, patientID string) {
	var req overrideRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if req.Source == "" {
		req.Source = "http"
	}
	rng := m.ParameterRange{Min: req.Min, Max: req.Max, Unit: req.Unit}
	if err := h.svc.SetManualOverride(r.Context(), patientID, m.ParameterID(req.Parameter), rng, req.Source); err != nil {
		h.fail(w, "set_override", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// ClearOverrides 清除覆盖
func (h *ThresholdHandler) ClearOverrides(w http.ResponseWriter, r *http.Request, patientID string) {
	if err := h.svc.ClearManualOverrides(r.Context(), patientID, r.URL.Query().Get("reason")); err != nil {
		h.fail(w, "clear_overrides", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

// ListOverrideEvents 覆盖审计
func (h *ThresholdHandler) ListOverrideEvents(w http.ResponseWriter, r *http.Request, patientID string) {
	if h.events == nil {
		writeJSON(w, http.StatusOK, Ok([]repository.OverrideEvent{}))
		return
	}
	events, err := h.events.ListEvents(r.Context(), patientID, parseInt(r.URL.Query().Get("limit"), 100))
	if err != nil {
		h.fail(w, "list_override_events", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(events))
}

// GetContext 患者上下文
func (h *ThresholdHandler) GetContext(w http.ResponseWriter, r *http.Request, patientID string) {
	pc, err := h.svc.GetContext(r.Context(), patientID)
	if err != nil {
		h.fail(w, "get_context", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(pc))
}

type contextRequest struct {
	ProblemID *string `json:"problem_id"`
	RiskLevel string  `json:"risk_level"`
}

// SetContext 更新问题与风险等级
func (h *ThresholdHandler) SetContext(w http.ResponseWriter, r *http.Request, patientID string) {
	var req contextRequest
	if err := readBodyJSON(r, maxBodyBytes, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.svc.SetProblemAndRisk(r.Context(), patientID, req.ProblemID, m.RiskLevel(req.RiskLevel)); err != nil {
		h.fail(w, "set_context", patientID, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok[any](nil))
}

type matrixEntry struct {
	ProblemID   string        `json:"problem_id"`
	RiskLevel   m.RiskLevel   `json:"risk_level"`
	Ranges      m.RangeMap    `json:"ranges"`
	OrganLevels m.OrganLevels `json:"organ_levels"`
}

// GetMatrix 规则矩阵
func (h *ThresholdHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	entries := h.matrix.Entries()
	out := make([]matrixEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, matrixEntry{
			ProblemID:   e.ProblemID,
			RiskLevel:   e.RiskLevel,
			Ranges:      e.Ranges,
			OrganLevels: e.OrganLevels,
		})
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

type tagCatalogEntry struct {
	TagID  m.TagID                                      `json:"tag_id"`
	Ranges map[m.ParameterID]map[m.RiskLevel][2]float64 `json:"ranges"`
	Organs map[m.OrganID]int                            `json:"organs"`
}

// GetTagCatalog 已知标签与增量
func (h *ThresholdHandler) GetTagCatalog(w http.ResponseWriter, r *http.Request) {
	tags := h.engine.KnownTags()
	out := make([]tagCatalogEntry, 0, len(tags))
	for _, tag := range tags {
		d, _ := h.engine.Delta(tag)
		entry := tagCatalogEntry{
			TagID:  tag,
			Ranges: make(map[m.ParameterID]map[m.RiskLevel][2]float64, len(d.Ranges)),
			Organs: d.Organs,
		}
		for p, byRisk := range d.Ranges {
			entry.Ranges[p] = make(map[m.RiskLevel][2]float64, len(byRisk))
			for risk, rd := range byRisk {
				entry.Ranges[p][risk] = [2]float64{rd.MinDelta, rd.MaxDelta}
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

// ExportMatrix 下载规则表（xlsx）
func (h *ThresholdHandler) ExportMatrix(w http.ResponseWriter, r *http.Request) {
	data, err := export.GenerateRuleWorkbook(h.matrix, h.engine)
	if err != nil {
		h.fail(w, "export_matrix", "", err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="threshold_rules.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
