package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"vital-monitor/internal/aggregator"
	"vital-monitor/internal/export"
	"vital-monitor/internal/ingest"
	"vital-monitor/internal/models"
	"vital-monitor/internal/notify"
	"vital-monitor/internal/pipeline"
	"vital-monitor/internal/repository"
	"vital-monitor/internal/service"
	"vital-monitor/internal/transformer"

	"go.uber.org/zap"
)

const (
	maxUploadBytes    = 32 << 20
	maxJSONBodyBytes  = 1 << 20
	defaultAlertLimit = 100
)

// Monitor 处理器依赖的服务接口（service.MonitorService 实现）
type Monitor interface {
	ListPatients(ctx context.Context) ([]models.Patient, error)
	GetThresholds(ctx context.Context, patientID string) (models.ThresholdConfig, error)
	UpdateThresholds(ctx context.Context, patientID string, cfg models.ThresholdConfig) error
	AnalyzeUpload(ctx context.Context, req service.UploadRequest) (*pipeline.Result, error)
	PatientView(ctx context.Context, patientID string) (*pipeline.Result, error)
	CachedSummary(ctx context.Context, patientID string) (*aggregator.PatientSummary, error)
	ListAlerts(ctx context.Context, patientID string, limit int) ([]models.StoredAlert, error)
	AcknowledgeAlert(ctx context.Context, eventID, by, note string) error
	NotifySummary(ctx context.Context, patientID, to string) (notify.Message, error)
	InvalidateUpload(ctx context.Context, hash string) error
}

// MonitorHandler 生命体征监测 API
type MonitorHandler struct {
	svc       Monitor
	logger    *zap.Logger
	maxUpload int64
}

func NewMonitorHandler(svc Monitor, logger *zap.Logger) *MonitorHandler {
	return &MonitorHandler{svc: svc, logger: logger, maxUpload: maxUploadBytes}
}

// GET /api/v1/patients
func (h *MonitorHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.svc.ListPatients(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if patients == nil {
		patients = []models.Patient{}
	}
	writeJSON(w, http.StatusOK, Ok(patients))
}

// GET /api/v1/patients/{id}/thresholds
func (h *MonitorHandler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.GetThresholds(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(cfg))
}

// PUT /api/v1/patients/{id}/thresholds
// body: {"hr_high":120,"spo2_low":90,"temp_high":38}
// 保存后返回按新阈值重新计算的结果
func (h *MonitorHandler) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	patientID := r.PathValue("id")

	var cfg models.ThresholdConfig
	if err := readBodyJSON(r, maxJSONBodyBytes, &cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if err := h.svc.UpdateThresholds(ctx, patientID, cfg); err != nil {
		h.writeError(w, err)
		return
	}

	res, err := h.svc.PatientView(ctx, patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// POST /api/v1/patients/{id}/uploads?save=true&name=Alice
// body: CSV 或 XLSX 原始内容；文件名取 X-Filename 头（决定解析格式）
// 响应头 X-Dataset-Hash 为内容哈希，可用于 DELETE /api/v1/uploads/{hash}
func (h *MonitorHandler) Upload(w http.ResponseWriter, r *http.Request) {
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUpload))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, Fail(fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit)))
			return
		}
		writeJSON(w, http.StatusBadRequest, Fail("failed to read body"))
		return
	}
	if len(content) == 0 {
		writeJSON(w, http.StatusBadRequest, Fail("empty upload"))
		return
	}

	filename := r.Header.Get("X-Filename")
	if filename == "" {
		filename = "upload.csv"
	}

	q := r.URL.Query()
	res, err := h.svc.AnalyzeUpload(r.Context(), service.UploadRequest{
		PatientID:   r.PathValue("id"),
		PatientName: q.Get("name"),
		Filename:    filename,
		Content:     content,
		Save:        parseBool(q.Get("save")),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Dataset-Hash", ingest.ContentHash(content))
	writeJSON(w, http.StatusOK, Ok(res))
}

// DELETE /api/v1/uploads/{hash}
// 删除上传文件的清洗缓存
func (h *MonitorHandler) InvalidateUpload(w http.ResponseWriter, r *http.Request) {
	hash := r.PathValue("hash")
	if err := h.svc.InvalidateUpload(r.Context(), hash); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"hash": hash}))
}

// GET /api/v1/patients/{id}/observations
func (h *MonitorHandler) Observations(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.PatientView(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(res))
}

// GET /api/v1/patients/{id}/summary
func (h *MonitorHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.svc.CachedSummary(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(summary))
}

// GET /api/v1/patients/{id}/alerts?limit=100
func (h *MonitorHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), defaultAlertLimit)
	if limit <= 0 {
		limit = defaultAlertLimit
	}

	alerts, err := h.svc.ListAlerts(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []models.StoredAlert{}
	}
	writeJSON(w, http.StatusOK, Ok(alerts))
}

type ackRequest struct {
	AcknowledgedBy string `json:"acknowledged_by"`
	Note           string `json:"note"`
}

// POST /api/v1/alerts/{eventID}/ack
func (h *MonitorHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var body ackRequest
	if err := readBodyJSON(r, maxJSONBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}
	if body.AcknowledgedBy == "" {
		writeJSON(w, http.StatusBadRequest, Fail("acknowledged_by is required"))
		return
	}

	eventID := r.PathValue("eventID")
	if err := h.svc.AcknowledgeAlert(r.Context(), eventID, body.AcknowledgedBy, body.Note); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]string{"event_id": eventID, "state": models.AlertStateAcknowledged}))
}

// GET /api/v1/patients/{id}/export?kind=alerts|dataset|summary&format=csv|xlsx
// xlsx 忽略 kind，始终包含 Summary 和 Alerts 两个工作表
func (h *MonitorHandler) Export(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	q := r.URL.Query()
	kind := q.Get("kind")
	if kind == "" {
		kind = "alerts"
	}
	format := q.Get("format")
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "xlsx" {
		writeJSON(w, http.StatusBadRequest, Fail("unsupported format: "+format))
		return
	}
	if format == "csv" && kind != "alerts" && kind != "dataset" && kind != "summary" {
		writeJSON(w, http.StatusBadRequest, Fail("unsupported kind: "+kind))
		return
	}

	res, err := h.svc.PatientView(r.Context(), patientID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	var contentType, filename string
	if format == "xlsx" {
		data, err := export.BuildWorkbook(res.Dataset, res.Report)
		if err != nil {
			h.writeError(w, err)
			return
		}
		buf.Write(data)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = patientID + "_report.xlsx"
	} else {
		switch kind {
		case "dataset":
			err = export.WriteDatasetCSV(&buf, res.Dataset)
		case "summary":
			err = export.WriteSummaryCSV(&buf, res.Report.Summary)
		default:
			err = export.WriteAlertsCSV(&buf, res.Dataset)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		contentType = "text/csv; charset=utf-8"
		filename = fmt.Sprintf("%s_%s.csv", patientID, kind)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(filename)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

type notifyRequest struct {
	To string `json:"to"`
}

// POST /api/v1/patients/{id}/notify
// body: {"to":"nurse@example.com"}，为空时使用默认收件地址
func (h *MonitorHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var body notifyRequest
	if err := readBodyJSON(r, maxJSONBodyBytes, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid body"))
		return
	}

	msg, err := h.svc.NotifySummary(r.Context(), r.PathValue("id"), body.To)
	if err != nil {
		if errors.Is(err, notify.ErrNoRecipient) {
			writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
			return
		}
		if msg.To != "" {
			// 消息已生成但交接失败
			writeJSON(w, http.StatusBadGateway, FailWith(err.Error(), msg))
			return
		}
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Ok(msg))
}

func (h *MonitorHandler) writeError(w http.ResponseWriter, err error) {
	var schemaErr *transformer.SchemaError
	var emptyErr *transformer.EmptyDatasetError

	switch {
	case errors.As(err, &schemaErr):
		writeJSON(w, http.StatusUnprocessableEntity, FailWith(err.Error(), map[string][]string{"missing": schemaErr.Missing}))
	case errors.As(err, &emptyErr), errors.Is(err, ingest.ErrNoHeader):
		writeJSON(w, http.StatusUnprocessableEntity, Fail(err.Error()))
	case errors.Is(err, service.ErrPatientRequired), errors.Is(err, service.ErrInvalidThresholds),
		errors.Is(err, ingest.ErrInvalidHash):
		writeJSON(w, http.StatusBadRequest, Fail(err.Error()))
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Fail(err.Error()))
	default:
		h.logger.Error("Request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("internal error"))
	}
}
