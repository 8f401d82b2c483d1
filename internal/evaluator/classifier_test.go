package evaluator

import (
	"math"
	"testing"
	"time"

	"vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Scenarios(t *testing.T) {
	cfg := models.DefaultThresholds()

	tests := []struct {
		name           string
		hr, spo2, temp float64
		want           models.Status
	}{
		{"high heart rate", 125, 97, 36.8, models.StatusHighHeartRate},
		{"low oxygen after hr passes", 80, 85, 36.8, models.StatusLowOxygen},
		{"first match wins", 125, 85, 39.0, models.StatusHighHeartRate},
		{"fever", 80, 97, 38.5, models.StatusFever},
		{"boundary values are normal", 120, 90, 38.0, models.StatusNormal},
		{"normal", 72, 98, 36.6, models.StatusNormal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.hr, tt.spo2, tt.temp, cfg))
		})
	}
}

func TestClassify_TotalOverMissingValues(t *testing.T) {
	cfg := models.DefaultThresholds()
	nan := math.NaN()
	valid := map[models.Status]bool{
		models.StatusNormal:        true,
		models.StatusHighHeartRate: true,
		models.StatusLowOxygen:     true,
		models.StatusFever:         true,
	}

	// 每个参数取 {告警值, 正常值, 缺失}
	hrs := []float64{130, 70, nan}
	spo2s := []float64{80, 97, nan}
	temps := []float64{39, 36.5, nan}
	for _, hr := range hrs {
		for _, spo2 := range spo2s {
			for _, temp := range temps {
				got := Classify(hr, spo2, temp, cfg)
				assert.True(t, valid[got])
			}
		}
	}

	assert.Equal(t, models.StatusLowOxygen, Classify(nan, 80, 39, cfg))
	assert.Equal(t, models.StatusFever, Classify(nan, nan, 39, cfg))
	assert.Equal(t, models.StatusNormal, Classify(nan, nan, nan, cfg))
}

func TestReclassify_IdempotentAndPure(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	ds := models.Dataset{Readings: []models.Reading{
		{Timestamp: base, HeartRate: 125, SpO2: 97, Temperature: 36.8},
		{Timestamp: base.Add(time.Minute), HeartRate: 80, SpO2: 85, Temperature: 36.8},
		{Timestamp: base.Add(2 * time.Minute), HeartRate: 80, SpO2: 97, Temperature: 36.8, Status: models.StatusFever},
	}}
	cfg := models.DefaultThresholds()

	once := Reclassify(ds, cfg)
	twice := Reclassify(once, cfg)

	assert.Equal(t, once, twice)
	assert.Equal(t, models.StatusNormal, once.Readings[2].Status)
	// 输入未被修改
	assert.Equal(t, models.StatusFever, ds.Readings[2].Status)
	assert.Equal(t, models.Status(""), ds.Readings[0].Status)
}

func TestReclassify_ThresholdChange(t *testing.T) {
	ds := models.Dataset{Readings: []models.Reading{
		{HeartRate: 125, SpO2: 97, Temperature: 36.8},
	}}

	assert.Equal(t, models.StatusHighHeartRate, Reclassify(ds, models.DefaultThresholds()).Readings[0].Status)

	relaxed := models.ThresholdConfig{HRHigh: 130, SpO2Low: 90, TempHigh: 38}
	assert.Equal(t, models.StatusNormal, Reclassify(ds, relaxed).Readings[0].Status)
}
