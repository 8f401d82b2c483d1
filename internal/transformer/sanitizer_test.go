package transformer

import (
	"errors"
	"math"
	"testing"
	"time"

	"vital-monitor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canonicalTable(rows ...[]string) models.Table {
	return models.Table{Header: models.CanonicalColumns, Rows: rows}
}

func TestSanitize_DropsInvalidTimestamps(t *testing.T) {
	s := NewSanitizer(time.UTC)
	ds, stats, err := s.Sanitize(canonicalTable(
		[]string{"2025-03-01 08:00:00", "80", "97", "36.8"},
		[]string{"not a date", "80", "97", "36.8"},
		[]string{"", "80", "97", "36.8"},
	))

	require.NoError(t, err)
	assert.Equal(t, 1, ds.Len())
	assert.Equal(t, 3, stats.InputRows)
	assert.Equal(t, 2, stats.DroppedRows)
}

func TestSanitize_StableSort(t *testing.T) {
	s := NewSanitizer(time.UTC)
	ds, _, err := s.Sanitize(canonicalTable(
		[]string{"2025-03-01 08:10:00", "90", "97", "36.8"},
		[]string{"2025-03-01 08:00:00", "81", "97", "36.8"},
		[]string{"2025-03-01 08:10:00", "91", "97", "36.8"},
		[]string{"2025-03-01 08:00:00", "82", "97", "36.8"},
	))

	require.NoError(t, err)
	assert.Equal(t, []float64{81, 82, 90, 91}, ds.HeartRates())
	for i := 1; i < ds.Len(); i++ {
		assert.False(t, ds.Readings[i].Timestamp.Before(ds.Readings[i-1].Timestamp))
	}
}

func TestSanitize_ClipsAndMarksMissing(t *testing.T) {
	s := NewSanitizer(time.UTC)
	ds, stats, err := s.Sanitize(canonicalTable(
		[]string{"2025-03-01 08:00:00", "250", "40", "50"},
		[]string{"2025-03-01 08:01:00", "10", "101", "20"},
		[]string{"2025-03-01 08:02:00", "abc", "", " 37.2 "},
	))
	require.NoError(t, err)

	r := ds.Readings
	assert.Equal(t, 220.0, r[0].HeartRate)
	assert.Equal(t, 50.0, r[0].SpO2)
	assert.Equal(t, 43.0, r[0].Temperature)
	assert.Equal(t, 30.0, r[1].HeartRate)
	assert.Equal(t, 100.0, r[1].SpO2)
	assert.Equal(t, 33.0, r[1].Temperature)
	assert.True(t, math.IsNaN(r[2].HeartRate))
	assert.True(t, math.IsNaN(r[2].SpO2))
	assert.Equal(t, 37.2, r[2].Temperature)

	assert.Equal(t, 6, stats.ClippedValues)
	assert.Equal(t, 2, stats.MissingValues)
}

func TestSanitize_ClippingInvariant(t *testing.T) {
	s := NewSanitizer(time.UTC)
	values := []string{"-5", "0", "29.9", "30", "75", "99.5", "100.1", "219", "500", "1e6"}
	var rows [][]string
	for i, v := range values {
		ts := time.Date(2025, 3, 1, 8, i, 0, 0, time.UTC).Format("2006-01-02 15:04:05")
		rows = append(rows, []string{ts, v, v, v})
	}

	ds, _, err := s.Sanitize(canonicalTable(rows...))
	require.NoError(t, err)
	for _, r := range ds.Readings {
		assert.True(t, r.HeartRate >= 30 && r.HeartRate <= 220)
		assert.True(t, r.SpO2 >= 50 && r.SpO2 <= 100)
		assert.True(t, r.Temperature >= 33 && r.Temperature <= 43)
	}
}

func TestSanitize_IgnoresStatusColumn(t *testing.T) {
	s := NewSanitizer(time.UTC)
	tbl := models.Table{
		Header: append(append([]string{}, models.CanonicalColumns...), models.ColumnStatus),
		Rows:   [][]string{{"2025-03-01 08:00:00", "80", "97", "36.8", "Fever Alert"}},
	}

	ds, _, err := s.Sanitize(tbl)
	require.NoError(t, err)
	assert.Equal(t, models.Status(""), ds.Readings[0].Status)
}

func TestSanitize_EmptyDataset(t *testing.T) {
	s := NewSanitizer(time.UTC)
	_, stats, err := s.Sanitize(canonicalTable(
		[]string{"garbage", "80", "97", "36.8"},
	))

	var emptyErr *EmptyDatasetError
	require.True(t, errors.As(err, &emptyErr))
	assert.Equal(t, 1, emptyErr.InputRows)
	assert.Equal(t, 1, stats.DroppedRows)
}

func TestSanitize_RequiresCanonicalColumns(t *testing.T) {
	s := NewSanitizer(time.UTC)
	_, _, err := s.Sanitize(models.Table{Header: []string{"Time", "hr"}})

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Len(t, schemaErr.Missing, 3)
}

func TestSanitize_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	s := NewSanitizer(loc)
	ds, _, err := s.Sanitize(canonicalTable(
		[]string{"2025-03-01 08:00:00", "80", "97", "36.8"},
	))
	require.NoError(t, err)
	assert.True(t, ds.Readings[0].Timestamp.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNormalizeThenSanitize_HeartRateAlias(t *testing.T) {
	tbl := models.Table{
		Header: []string{"Time", "heart_rate", "SpO₂ (%)", "Temp (°C)"},
		Rows:   [][]string{{"2025-03-01 08:00:00", "72", "98", "36.5"}},
	}

	norm, err := NewSchemaNormalizer(nil).Normalize(tbl)
	require.NoError(t, err)
	ds, _, err := NewSanitizer(nil).Sanitize(norm)
	require.NoError(t, err)
	assert.Equal(t, 72.0, ds.Readings[0].HeartRate)
}
