package export

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"vital-monitor/internal/aggregator"
	"vital-monitor/internal/evaluator"
	"vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() models.Dataset {
	ts := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	return evaluator.Reclassify(models.Dataset{Readings: []models.Reading{
		{Timestamp: ts, HeartRate: 80, SpO2: 97, Temperature: 36.8},
		{Timestamp: ts.Add(time.Minute), HeartRate: 125, SpO2: 97, Temperature: math.NaN()},
		{Timestamp: ts.Add(2 * time.Minute), HeartRate: 80, SpO2: 85.5, Temperature: 36.8},
	}}, models.DefaultThresholds())
}

func TestWriteDatasetCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDatasetCSV(&buf, sampleDataset()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Time,HR (bpm),SpO₂ (%),Temp (°C),Status", lines[0])
	assert.Equal(t, "2025-03-01 08:00:00,80,97,36.8,Normal", lines[1])
	assert.Equal(t, "2025-03-01 08:01:00,125,97,,High Heart Rate Alert", lines[2])
}

func TestWriteAlertsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAlertsCSV(&buf, sampleDataset()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "High Heart Rate Alert")
	assert.Equal(t, "2025-03-01 08:02:00,80,85.5,36.8,Low Oxygen Alert", lines[2])
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	report := aggregator.Aggregate(sampleDataset())
	require.NoError(t, WriteSummaryCSV(&buf, report.Summary))

	assert.Equal(t,
		"total_records,total_alerts,avg_hr_bpm,avg_spo2_pct,avg_temp_c\n3,2,95,93.2,36.8\n",
		buf.String())
}

func TestBuildWorkbook(t *testing.T) {
	ds := sampleDataset()
	data, err := BuildWorkbook(ds, aggregator.Aggregate(ds))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Alerts"}, f.GetSheetList())

	rows, err := f.GetRows("Alerts")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, DatasetHeader, rows[0])
	assert.Equal(t, "High Heart Rate Alert", rows[1][4])

	summary, err := f.GetRows("Summary")
	require.NoError(t, err)
	assert.Equal(t, SummaryHeader, summary[0])
	assert.Equal(t, "3", summary[1][0])
	assert.Equal(t, []string{"High Heart Rate Alert", "1"}, summary[4])
}
