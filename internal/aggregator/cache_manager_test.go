package aggregator_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	agg "vital-monitor/internal/aggregator"
	"vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCacheManager_UpdateSummary_WritesJSON(t *testing.T) {
	kv := newFakeKV()
	cm := agg.NewCacheManager(kv, time.Minute, zap.NewNop())
	ctx := context.Background()

	report := agg.Aggregate(models.Dataset{Readings: []models.Reading{
		{HeartRate: 125, SpO2: 97, Temperature: 36.8, Status: models.StatusHighHeartRate},
	}})
	require.NoError(t, cm.UpdateSummary(ctx, "p-1", report))

	raw, err := kv.Get(ctx, "vitals:patient:p-1:summary")
	require.NoError(t, err)

	var decoded agg.PatientSummary
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	assert.Equal(t, "p-1", decoded.PatientID)
	assert.Equal(t, 1, decoded.Report.Counts[models.StatusHighHeartRate])
	assert.Equal(t, 1, decoded.Report.Summary.TotalAlerts)
}

func TestCacheManager_GetSummary(t *testing.T) {
	kv := newFakeKV()
	cm := agg.NewCacheManager(kv, 0, zap.NewNop())
	ctx := context.Background()

	_, err := cm.GetSummary(ctx, "p-1")
	assert.ErrorIs(t, err, agg.ErrCacheMiss)

	require.NoError(t, cm.UpdateSummary(ctx, "p-1", agg.Aggregate(models.Dataset{})))
	s, err := cm.GetSummary(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Report.Summary.TotalRecords)

	require.NoError(t, cm.InvalidateSummary(ctx, "p-1"))
	_, err = cm.GetSummary(ctx, "p-1")
	assert.ErrorIs(t, err, agg.ErrCacheMiss)
}
