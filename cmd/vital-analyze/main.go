package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vital-monitor/common/logger"
	"vital-monitor/internal/export"
	"vital-monitor/internal/ingest"
	"vital-monitor/internal/models"
	"vital-monitor/internal/pipeline"
	"vital-monitor/internal/transformer"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// options 命令行参数
type options struct {
	File   string
	OutDir string
	XLSX   bool
	Window int
	Config models.ThresholdConfig
}

func parseFlags(args []string) (options, error) {
	fs := flag.NewFlagSet("vital-analyze", flag.ContinueOnError)
	var opts options
	fs.StringVar(&opts.File, "file", "iot_health_data.csv", "input CSV or XLSX file")
	fs.StringVar(&opts.OutDir, "out", "", "output directory (default: next to the input file)")
	fs.BoolVar(&opts.XLSX, "xlsx", false, "also write an XLSX report")
	fs.IntVar(&opts.Window, "window", 12, "anomaly detection window (samples)")
	fs.Float64Var(&opts.Config.HRHigh, "hr-high", models.DefaultHRHigh, "heart rate alert threshold (bpm)")
	fs.Float64Var(&opts.Config.SpO2Low, "spo2-low", models.DefaultSpO2Low, "SpO2 alert threshold (%)")
	fs.Float64Var(&opts.Config.TempHigh, "temp-high", models.DefaultTempHigh, "temperature alert threshold (°C)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if err := validator.New().Struct(opts.Config); err != nil {
		return opts, fmt.Errorf("invalid thresholds: %w", err)
	}
	if opts.OutDir == "" {
		opts.OutDir = filepath.Dir(opts.File)
	}
	return opts, nil
}

// outputs 生成的文件路径
type outputs struct {
	Alerts  string
	Summary string
	XLSX    string
}

func outputPaths(opts options) outputs {
	base := strings.TrimSuffix(filepath.Base(opts.File), filepath.Ext(opts.File))
	out := outputs{
		Alerts:  filepath.Join(opts.OutDir, base+"_alerts.csv"),
		Summary: filepath.Join(opts.OutDir, base+"_kpi.csv"),
	}
	if opts.XLSX {
		out.XLSX = filepath.Join(opts.OutDir, base+"_report.xlsx")
	}
	return out
}

func run(opts options, log *zap.Logger) (*pipeline.Result, error) {
	f, err := os.Open(opts.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer f.Close()

	table, err := ingest.ReadTable(opts.File, f)
	if err != nil {
		return nil, err
	}

	res, err := pipeline.Analyze(table, opts.Config, pipeline.Options{Window: opts.Window})
	if err != nil {
		return nil, err
	}

	s := res.Report.Summary
	log.Info("Analysis complete",
		zap.String("file", opts.File),
		zap.Int("total_records", s.TotalRecords),
		zap.Int("total_alerts", s.TotalAlerts),
		zap.Int("anomalies", res.AnomalyCount()),
		zap.Int("dropped_rows", res.Stats.DroppedRows),
		zap.Int("missing_values", res.Stats.MissingValues),
		zap.Int("clipped_values", res.Stats.ClippedValues),
	)
	for _, st := range models.AlertStatuses {
		if n := res.Report.Counts[st]; n > 0 {
			log.Info("Alert category", zap.String("status", st.Label()), zap.Int("count", n))
		}
	}

	paths := outputPaths(opts)
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var alerts bytes.Buffer
	if err := export.WriteAlertsCSV(&alerts, res.Dataset); err != nil {
		return nil, err
	}
	if err := os.WriteFile(paths.Alerts, alerts.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write alerts: %w", err)
	}
	log.Info("Alerts saved", zap.String("path", paths.Alerts))

	var summary bytes.Buffer
	if err := export.WriteSummaryCSV(&summary, s); err != nil {
		return nil, err
	}
	if err := os.WriteFile(paths.Summary, summary.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	log.Info("Summary saved", zap.String("path", paths.Summary))

	if paths.XLSX != "" {
		data, err := export.BuildWorkbook(res.Dataset, res.Report)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(paths.XLSX, data, 0o644); err != nil {
			return nil, fmt.Errorf("failed to write workbook: %w", err)
		}
		log.Info("Workbook saved", zap.String("path", paths.XLSX))
	}
	return res, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.NewLogger("info", "console", "vital-analyze")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	if _, err := run(opts, log); err != nil {
		var schemaErr *transformer.SchemaError
		if errors.As(err, &schemaErr) {
			log.Error("Input is missing required columns",
				zap.Strings("missing", schemaErr.Missing),
				zap.Strings("expected", models.CanonicalColumns),
			)
		} else {
			log.Error("Analysis failed", zap.Error(err))
		}
		_ = log.Sync()
		os.Exit(1)
	}
}
