package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（method + path 模式）
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

// HandleHandler 支持 http.Handler 接口（用于 promhttp 等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterMonitorRoutes 注册患者、阈值、上传、报警、导出和通知接口
func (r *Router) RegisterMonitorRoutes(h *MonitorHandler) {
	r.Handle("GET /api/v1/patients", h.ListPatients)

	r.Handle("GET /api/v1/patients/{id}/thresholds", h.GetThresholds)
	r.Handle("PUT /api/v1/patients/{id}/thresholds", h.UpdateThresholds)

	r.Handle("POST /api/v1/patients/{id}/uploads", h.Upload)
	r.Handle("DELETE /api/v1/uploads/{hash}", h.InvalidateUpload)
	r.Handle("GET /api/v1/patients/{id}/observations", h.Observations)
	r.Handle("GET /api/v1/patients/{id}/summary", h.Summary)

	r.Handle("GET /api/v1/patients/{id}/alerts", h.ListAlerts)
	r.Handle("POST /api/v1/alerts/{eventID}/ack", h.AcknowledgeAlert)

	r.Handle("GET /api/v1/patients/{id}/export", h.Export)
	r.Handle("POST /api/v1/patients/{id}/notify", h.Notify)
}

// RegisterOpsRoutes 健康检查和 Prometheus 指标
func (r *Router) RegisterOpsRoutes() {
	r.Handle("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, Ok("ok"))
	})
	r.HandleHandler("GET /metrics", promhttp.Handler())
}
