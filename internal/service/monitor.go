package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vital-monitor/internal/aggregator"
	"vital-monitor/internal/evaluator"
	"vital-monitor/internal/metrics"
	"vital-monitor/internal/models"
	"vital-monitor/internal/notify"
	"vital-monitor/internal/pipeline"
	"vital-monitor/internal/transformer"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

var (
	// ErrPatientRequired 保存数据需要患者 id
	ErrPatientRequired = errors.New("patient_id is required")
	// ErrInvalidThresholds 阈值超出允许范围
	ErrInvalidThresholds = errors.New("invalid thresholds")
)

// PatientStore 患者存储
type PatientStore interface {
	ListPatients(ctx context.Context) ([]models.Patient, error)
	EnsurePatient(ctx context.Context, id, name string) error
}

// ThresholdStore 阈值存储（未配置时返回默认阈值）
type ThresholdStore interface {
	GetThresholds(ctx context.Context, patientID string) (models.ThresholdConfig, error)
	UpsertThresholds(ctx context.Context, patientID string, cfg models.ThresholdConfig) error
}

// ObservationStore 读数存储
type ObservationStore interface {
	LoadObservations(ctx context.Context, patientID string) (models.Dataset, error)
	RecentHeartRates(ctx context.Context, patientID string, limit int) ([]float64, error)
}

// AlertStore 报警存储
type AlertStore interface {
	ListAlerts(ctx context.Context, patientID string, limit int) ([]models.StoredAlert, error)
	AcknowledgeAlert(ctx context.Context, eventID, by, note string) error
}

// ResultStore 分析结果存储：读数与报警在同一事务内提交
type ResultStore interface {
	SaveResults(ctx context.Context, patientID string, ds models.Dataset, alerts []models.AlertRecord) ([]string, error)
}

// DatasetLoader 上传文件加载（ingest.Loader 实现）
type DatasetLoader interface {
	Load(ctx context.Context, filename string, content []byte) (models.Dataset, transformer.SanitizeStats, error)
	Invalidate(ctx context.Context, hash string) error
}

// Stores 持久化依赖
type Stores struct {
	Patients     PatientStore
	Thresholds   ThresholdStore
	Observations ObservationStore
	Alerts       AlertStore
	Results      ResultStore
}

// UploadRequest 上传分析请求
type UploadRequest struct {
	PatientID   string
	PatientName string
	Filename    string
	Content     []byte
	Save        bool // 保存读数、报警和当前阈值
}

// MonitorService 生命体征监测服务：连接采集、核心计算、持久化和通知
type MonitorService struct {
	stores   Stores
	loader   DatasetLoader
	cache    *aggregator.CacheManager // 可为 nil
	notifier notify.Notifier
	opts     pipeline.Options
	notifyTo string
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewMonitorService 创建服务
func NewMonitorService(
	stores Stores,
	loader DatasetLoader,
	cache *aggregator.CacheManager,
	notifier notify.Notifier,
	opts pipeline.Options,
	notifyTo string,
	logger *zap.Logger,
) *MonitorService {
	return &MonitorService{
		stores:   stores,
		loader:   loader,
		cache:    cache,
		notifier: notifier,
		opts:     opts,
		notifyTo: notifyTo,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// AnalyzeUpload 分析上传文件；Save 时写入患者、读数、报警和阈值
func (s *MonitorService) AnalyzeUpload(ctx context.Context, req UploadRequest) (*pipeline.Result, error) {
	if req.Save && req.PatientID == "" {
		return nil, ErrPatientRequired
	}
	start := time.Now()

	ds, stats, err := s.loader.Load(ctx, req.Filename, req.Content)
	if err != nil {
		metrics.ObserveIngestFailure(failureReason(err))
		return nil, err
	}

	cfg, err := s.stores.Thresholds.GetThresholds(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}

	res := pipeline.Evaluate(ds, cfg, s.opts)
	res.Stats = stats
	s.observe(metrics.SourceUpload, res, start)

	s.logger.Info("Analyzed upload",
		zap.String("patient_id", req.PatientID),
		zap.String("filename", req.Filename),
		zap.Int("records", res.Report.Summary.TotalRecords),
		zap.Int("alerts", res.Report.Summary.TotalAlerts),
		zap.Int("dropped_rows", stats.DroppedRows),
	)

	if !req.Save {
		return res, nil
	}

	if err := s.stores.Patients.EnsurePatient(ctx, req.PatientID, req.PatientName); err != nil {
		return nil, err
	}
	if err := s.persist(ctx, req.PatientID, res); err != nil {
		return nil, err
	}
	if err := s.stores.Thresholds.UpsertThresholds(ctx, req.PatientID, cfg); err != nil {
		return nil, err
	}
	return res, nil
}

// InvalidateUpload 删除某个上传文件（按内容哈希）的清洗缓存
func (s *MonitorService) InvalidateUpload(ctx context.Context, hash string) error {
	return s.loader.Invalidate(ctx, hash)
}

// PatientView 加载患者全部读数，按当前阈值重新分类和聚合
func (s *MonitorService) PatientView(ctx context.Context, patientID string) (*pipeline.Result, error) {
	if patientID == "" {
		return nil, ErrPatientRequired
	}
	ds, err := s.stores.Observations.LoadObservations(ctx, patientID)
	if err != nil {
		return nil, err
	}
	cfg, err := s.stores.Thresholds.GetThresholds(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return pipeline.Evaluate(ds, cfg, s.opts), nil
}

// GetThresholds 当前阈值
func (s *MonitorService) GetThresholds(ctx context.Context, patientID string) (models.ThresholdConfig, error) {
	return s.stores.Thresholds.GetThresholds(ctx, patientID)
}

// UpdateThresholds 校验并保存阈值，同时使汇总缓存失效
func (s *MonitorService) UpdateThresholds(ctx context.Context, patientID string, cfg models.ThresholdConfig) error {
	if patientID == "" {
		return ErrPatientRequired
	}
	if err := s.validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidThresholds, err)
	}
	if err := s.stores.Thresholds.UpsertThresholds(ctx, patientID, cfg); err != nil {
		return err
	}
	s.invalidateSummary(ctx, patientID)

	s.logger.Info("Updated thresholds",
		zap.String("patient_id", patientID),
		zap.Float64("hr_high", cfg.HRHigh),
		zap.Float64("spo2_low", cfg.SpO2Low),
		zap.Float64("temp_high", cfg.TempHigh),
	)
	return nil
}

// ProcessReadings 处理设备上报的一批读数（流式路径）
func (s *MonitorService) ProcessReadings(ctx context.Context, patientID string, table models.Table) error {
	if patientID == "" {
		return ErrPatientRequired
	}
	start := time.Now()

	ds, stats, err := pipeline.Prepare(table, s.opts)
	if err != nil {
		metrics.ObserveIngestFailure(failureReason(err))
		return err
	}

	cfg, err := s.stores.Thresholds.GetThresholds(ctx, patientID)
	if err != nil {
		return err
	}
	window := evaluator.NewAnomalyDetector(s.opts.Window).Window()
	history, err := s.stores.Observations.RecentHeartRates(ctx, patientID, window-1)
	if err != nil {
		return err
	}

	res := pipeline.EvaluateWithHistory(ds, history, cfg, s.opts)
	res.Stats = stats
	s.observe(metrics.SourceStream, res, start)

	if err := s.stores.Patients.EnsurePatient(ctx, patientID, ""); err != nil {
		return err
	}
	if err := s.persist(ctx, patientID, res); err != nil {
		return err
	}

	s.logger.Info("Processed readings",
		zap.String("patient_id", patientID),
		zap.Int("records", res.Report.Summary.TotalRecords),
		zap.Int("alerts", res.Report.Summary.TotalAlerts),
		zap.Int("anomalies", res.AnomalyCount()),
		zap.Int("dropped_rows", stats.DroppedRows),
	)

	// 通知失败不影响已保存的结果
	if res.Report.Summary.TotalAlerts > 0 && s.notifyTo != "" {
		msg := notify.BuildSummaryMessage(s.notifyTo, patientID, res.Report, s.now())
		err := s.notifier.Notify(ctx, msg)
		metrics.ObserveNotify(err)
		if err != nil {
			s.logger.Error("Failed to hand off notification", zap.String("patient_id", patientID), zap.Error(err))
		}
	}
	return nil
}

// NotifySummary 生成患者汇总通知并交给 Notifier；to 为空时使用默认收件地址
func (s *MonitorService) NotifySummary(ctx context.Context, patientID, to string) (notify.Message, error) {
	if to == "" {
		to = s.notifyTo
	}
	if to == "" {
		return notify.Message{}, notify.ErrNoRecipient
	}

	res, err := s.PatientView(ctx, patientID)
	if err != nil {
		return notify.Message{}, err
	}

	msg := notify.BuildSummaryMessage(to, patientID, res.Report, s.now())
	err = s.notifier.Notify(ctx, msg)
	metrics.ObserveNotify(err)
	if err != nil {
		s.logger.Error("Failed to hand off notification", zap.String("patient_id", patientID), zap.Error(err))
		return msg, fmt.Errorf("notification failed: %w", err)
	}
	return msg, nil
}

// ListPatients 患者列表
func (s *MonitorService) ListPatients(ctx context.Context) ([]models.Patient, error) {
	return s.stores.Patients.ListPatients(ctx)
}

// ListAlerts 患者报警（时间倒序）
func (s *MonitorService) ListAlerts(ctx context.Context, patientID string, limit int) ([]models.StoredAlert, error) {
	if patientID == "" {
		return nil, ErrPatientRequired
	}
	return s.stores.Alerts.ListAlerts(ctx, patientID, limit)
}

// AcknowledgeAlert 确认报警
func (s *MonitorService) AcknowledgeAlert(ctx context.Context, eventID, by, note string) error {
	return s.stores.Alerts.AcknowledgeAlert(ctx, eventID, by, note)
}

// CachedSummary 读取汇总缓存，未命中时按当前阈值重新计算并回填
func (s *MonitorService) CachedSummary(ctx context.Context, patientID string) (*aggregator.PatientSummary, error) {
	if s.cache != nil {
		cached, err := s.cache.GetSummary(ctx, patientID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, aggregator.ErrCacheMiss) {
			s.logger.Warn("Failed to read summary cache", zap.String("patient_id", patientID), zap.Error(err))
		}
	}

	res, err := s.PatientView(ctx, patientID)
	if err != nil {
		return nil, err
	}
	s.updateCache(ctx, patientID, res.Report)
	return &aggregator.PatientSummary{
		PatientID: patientID,
		UpdatedAt: s.now().UTC(),
		Report:    res.Report,
	}, nil
}

// persist 写入读数和报警；汇总缓存随之失效，下次读取时按全部读数重新计算
func (s *MonitorService) persist(ctx context.Context, patientID string, res *pipeline.Result) error {
	if _, err := s.stores.Results.SaveResults(ctx, patientID, res.Dataset, res.Report.Alerts); err != nil {
		return err
	}
	s.invalidateSummary(ctx, patientID)
	return nil
}

func (s *MonitorService) invalidateSummary(ctx context.Context, patientID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSummary(ctx, patientID); err != nil {
		s.logger.Warn("Failed to invalidate summary cache", zap.String("patient_id", patientID), zap.Error(err))
	}
}

func (s *MonitorService) updateCache(ctx context.Context, patientID string, report models.Report) {
	if s.cache == nil {
		return
	}
	if err := s.cache.UpdateSummary(ctx, patientID, report); err != nil {
		s.logger.Warn("Failed to update summary cache", zap.String("patient_id", patientID), zap.Error(err))
	}
}

func (s *MonitorService) observe(source string, res *pipeline.Result, start time.Time) {
	metrics.ObserveIngest(source, res.Dataset.Len(), res.Stats.DroppedRows)
	metrics.ObserveAnomalies(source, res.AnomalyCount())

	byKind := make(map[string]int, len(res.Report.Counts))
	for st, n := range res.Report.Counts {
		if kind, ok := st.AlertKind(); ok {
			byKind[string(kind)] = n
		}
	}
	metrics.ObserveAlerts(byKind)
	metrics.ObservePipeline(source, start)
}

func failureReason(err error) string {
	var schemaErr *transformer.SchemaError
	var emptyErr *transformer.EmptyDatasetError
	switch {
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &emptyErr):
		return "empty"
	default:
		return "read"
	}
}
