package aggregator_test

import (
	"math"
	"testing"
	"time"

	agg "vital-monitor/internal/aggregator"
	"vital-monitor/internal/evaluator"
	"vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func classified(readings ...models.Reading) models.Dataset {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	for i := range readings {
		readings[i].Timestamp = base.Add(time.Duration(i) * time.Minute)
	}
	return evaluator.Reclassify(models.Dataset{Readings: readings}, models.DefaultThresholds())
}

func TestAggregate_HighHeartRateAlert(t *testing.T) {
	ds := classified(models.Reading{HeartRate: 125, SpO2: 97, Temperature: 36.8})

	report := agg.Aggregate(ds)
	require.Len(t, report.Alerts, 1)
	assert.Equal(t, models.AlertKindHRHigh, report.Alerts[0].Kind)
	assert.Equal(t, 125.0, report.Alerts[0].Value)
	assert.Equal(t, models.StatusHighHeartRate, report.Alerts[0].Status)
	assert.Equal(t, ds.Readings[0].Timestamp, report.Alerts[0].Timestamp)
}

func TestAggregate_KindValueMapping(t *testing.T) {
	ds := classified(
		models.Reading{HeartRate: 80, SpO2: 85, Temperature: 36.8},
		models.Reading{HeartRate: 80, SpO2: 97, Temperature: 39.1},
		models.Reading{HeartRate: 130, SpO2: 85, Temperature: 39.1},
	)

	report := agg.Aggregate(ds)
	require.Len(t, report.Alerts, 3)
	assert.Equal(t, models.AlertKindSpO2Low, report.Alerts[0].Kind)
	assert.Equal(t, 85.0, report.Alerts[0].Value)
	assert.Equal(t, models.AlertKindTempHigh, report.Alerts[1].Kind)
	assert.Equal(t, 39.1, report.Alerts[1].Value)
	assert.Equal(t, models.AlertKindHRHigh, report.Alerts[2].Kind)
	assert.Equal(t, 130.0, report.Alerts[2].Value)
}

func TestAggregate_CountsMatchAlerts(t *testing.T) {
	ds := classified(
		models.Reading{HeartRate: 125, SpO2: 97, Temperature: 36.8},
		models.Reading{HeartRate: 126, SpO2: 97, Temperature: 36.8},
		models.Reading{HeartRate: 80, SpO2: 85, Temperature: 36.8},
		models.Reading{HeartRate: 80, SpO2: 97, Temperature: 36.8},
	)

	report := agg.Aggregate(ds)
	total := 0
	for _, n := range report.Counts {
		total += n
	}
	assert.Equal(t, len(report.Alerts), total)
	assert.Equal(t, 2, report.Counts[models.StatusHighHeartRate])
	assert.Equal(t, 1, report.Counts[models.StatusLowOxygen])
	_, hasNormal := report.Counts[models.StatusNormal]
	assert.False(t, hasNormal)
	assert.Equal(t, 3, report.Summary.TotalAlerts)
	assert.Equal(t, 4, report.Summary.TotalRecords)
}

func TestAggregate_NoAlerts(t *testing.T) {
	ds := classified(models.Reading{HeartRate: 70, SpO2: 98, Temperature: 36.5})

	report := agg.Aggregate(ds)
	assert.Empty(t, report.Counts)
	assert.Empty(t, report.Alerts)
	assert.Equal(t, 0, report.Summary.TotalAlerts)
}

func TestAggregate_MeansIgnoreMissingAndRound(t *testing.T) {
	ds := classified(
		models.Reading{HeartRate: 70, SpO2: 98, Temperature: math.NaN()},
		models.Reading{HeartRate: 71, SpO2: math.NaN(), Temperature: math.NaN()},
		models.Reading{HeartRate: 72.5, SpO2: 96, Temperature: math.NaN()},
	)

	s := agg.Aggregate(ds).Summary
	require.NotNil(t, s.AvgHeartRate)
	assert.Equal(t, 71.2, *s.AvgHeartRate)
	require.NotNil(t, s.AvgSpO2)
	assert.Equal(t, 97.0, *s.AvgSpO2)
	assert.Nil(t, s.AvgTemperature)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	ds := classified(models.Reading{HeartRate: 125, SpO2: 97, Temperature: 36.8})
	before := ds.Clone()

	_ = agg.Aggregate(ds)
	assert.Equal(t, before, ds)
}
