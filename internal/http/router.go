package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const patientsPrefix = "/threshold/api/v1/patients/"

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 /metrics 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHealthRoutes 健康检查
func (r *Router) RegisterHealthRoutes() {
	r.Handle("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]string{"status": "ok"}))
	})
}

// RegisterThresholdRoutes 注册阈值路由
//
//	GET    /threshold/api/v1/matrix
//	GET    /threshold/api/v1/matrix/export
//	GET    /threshold/api/v1/tags
//	GET    /threshold/api/v1/patients/{id}/effective?refresh=true
//	GET    /threshold/api/v1/patients/{id}/tags
//	POST   /threshold/api/v1/patients/{id}/tags
//	GET    /threshold/api/v1/patients/{id}/overrides
//	POST   /threshold/api/v1/patients/{id}/overrides
//	DELETE /threshold/api/v1/patients/{id}/overrides?reason=
//	GET    /threshold/api/v1/patients/{id}/override-events?limit=
//	GET    /threshold/api/v1/patients/{id}/context
//	PUT    /threshold/api/v1/patients/{id}/context
func (r *Router) RegisterThresholdRoutes(h *ThresholdHandler) {
	r.Handle("/threshold/api/v1/matrix", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetMatrix(w, req)
	})

	r.Handle("/threshold/api/v1/matrix/export", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.ExportMatrix(w, req)
	})

	r.Handle("/threshold/api/v1/tags", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.GetTagCatalog(w, req)
	})

	r.Handle(patientsPrefix, func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, patientsPrefix)
		parts := strings.Split(rest, "/")
		if len(parts) != 2 || parts[0] == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		patientID, resource := parts[0], parts[1]

		switch {
		case resource == "effective" && req.Method == http.MethodGet:
			h.GetEffective(w, req, patientID)
		case resource == "tags" && req.Method == http.MethodGet:
			h.GetTags(w, req, patientID)
		case resource == "tags" && req.Method == http.MethodPost:
			h.ToggleTag(w, req, patientID)
		case resource == "overrides" && req.Method == http.MethodGet:
			h.ListOverrides(w, req, patientID)
		case resource == "overrides" && req.Method == http.MethodPost:
			h.SetOverride(w, req, patientID)
		case resource == "overrides" && req.Method == http.MethodDelete:
			h.ClearOverrides(w, req, patientID)
		case resource == "override-events" && req.Method == http.MethodGet:
			h.ListOverrideEvents(w, req, patientID)
		case resource == "context" && req.Method == http.MethodGet:
			h.GetContext(w, req, patientID)
		case resource == "context" && req.Method == http.MethodPut:
			h.SetContext(w, req, patientID)
		case resource == "effective" || resource == "tags" || resource == "overrides" ||
			resource == "override-events" || resource == "context":
			w.WriteHeader(http.StatusMethodNotAllowed)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}
