package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	mqttcommon "vital-monitor/common/mqtt"
	rediscommon "vital-monitor/common/redis"
	"vital-monitor/internal/models"
	"vital-monitor/internal/transformer"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testStream = "vitals:readings"

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

type fakeSubscriber struct {
	mu      sync.Mutex
	topic   string
	handler mqttcommon.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, handler mqttcommon.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topic = topic
	f.handler = handler
	return nil
}

func (f *fakeSubscriber) subscribed() (string, mqttcommon.MessageHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topic, f.handler
}

func (f *fakeSubscriber) Unsubscribe(...string) error { return nil }

func readStream(t *testing.T, client *redis.Client) []*models.VitalMessage {
	t.Helper()
	entries, err := client.XRange(context.Background(), testStream, "-", "+").Result()
	require.NoError(t, err)

	out := make([]*models.VitalMessage, 0, len(entries))
	for _, e := range entries {
		vm, err := models.ParseVitalMessage(e.Values)
		require.NoError(t, err)
		out = append(out, vm)
	}
	return out
}

// ============================================
// MQTT
// ============================================

func TestMQTTConsumer_PublishesObjectPayload(t *testing.T) {
	client := setupTestRedis(t)
	sub := &fakeSubscriber{}
	c := NewMQTTConsumer(sub, client, "vitals/+/readings", testStream, 1, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()
	require.Eventually(t, func() bool {
		_, h := sub.subscribed()
		return h != nil
	}, time.Second, 10*time.Millisecond)

	topic, handler := sub.subscribed()
	err := handler("vitals/p1/readings", []byte(`{"timestamp":"2025-03-01 08:00:00","hr":88,"spo2":97.5,"temp":"36.6","device_id":"d-9"}`))
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "vitals/+/readings", topic)

	msgs := readStream(t, client)
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].PatientID)
	assert.Equal(t, "d-9", msgs[0].DeviceID)
	assert.Equal(t, "2025-03-01 08:00:00", msgs[0].Payload["timestamp"])
	_, hasTime := msgs[0].Payload["time"]
	assert.False(t, hasTime)
}

func TestMQTTConsumer_ArrayPayloadAndReceivedTime(t *testing.T) {
	client := setupTestRedis(t)
	c := NewMQTTConsumer(&fakeSubscriber{}, client, "vitals/+/readings", testStream, 1, zap.NewNop())
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	err := c.handleMessage("vitals/p2/readings", []byte(`[{"hr":80,"spo2":97,"temp":36.5},null,{"hr":81,"spo2":96,"temp":36.6}]`))
	require.NoError(t, err)

	msgs := readStream(t, client)
	require.Len(t, msgs, 2)
	assert.Equal(t, "2025-03-01T09:00:00Z", msgs[0].Payload["time"])
	assert.Equal(t, fixed.UnixMilli(), msgs[1].ReceivedAt)
}

func TestMQTTConsumer_InvalidMessages(t *testing.T) {
	client := setupTestRedis(t)
	c := NewMQTTConsumer(&fakeSubscriber{}, client, "vitals/+/readings", testStream, 1, zap.NewNop())

	assert.Error(t, c.handleMessage("vitals", []byte(`{}`)))
	assert.Error(t, c.handleMessage("vitals/p1/readings", []byte(`not json`)))
	assert.Error(t, c.handleMessage("vitals/p1/readings", []byte(`null`)))
	assert.Empty(t, readStream(t, client))
}

// ============================================
// Streams
// ============================================

type fakeProcessor struct {
	mu       sync.Mutex
	tables   map[string]models.Table
	errs     map[string]error
	failOnce map[string]error // 只在第一次调用时返回
	calls    map[string]int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		tables:   make(map[string]models.Table),
		errs:     make(map[string]error),
		failOnce: make(map[string]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeProcessor) ProcessReadings(_ context.Context, patientID string, table models.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[patientID] = table
	f.calls[patientID]++
	if err, ok := f.failOnce[patientID]; ok {
		delete(f.failOnce, patientID)
		return err
	}
	return f.errs[patientID]
}

func (f *fakeProcessor) callCount(patientID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[patientID]
}

func publish(t *testing.T, client *redis.Client, patientID string, payload map[string]interface{}) {
	t.Helper()
	_, err := rediscommon.PublishJSONToStream(context.Background(), client, testStream, models.VitalMessage{
		PatientID: patientID,
		Payload:   payload,
	})
	require.NoError(t, err)
}

func newTestStreamConsumer(client *redis.Client, p ReadingsProcessor) *StreamConsumer {
	return NewStreamConsumer(StreamConfig{
		Stream:        testStream,
		ConsumerGroup: "g",
		ConsumerName:  "c1",
		BatchSize:     100,
		Workers:       2,
		Block:         -1,
	}, client, p, zap.NewNop())
}

func pendingCount(t *testing.T, client *redis.Client) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), testStream, "g").Result()
	require.NoError(t, err)
	return p.Count
}

func TestStreamConsumer_GroupsByPatient(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testStream, "g"))

	publish(t, client, "p1", map[string]interface{}{"time": "2025-03-01 08:00:00", "hr": 80})
	publish(t, client, "p2", map[string]interface{}{"time": "2025-03-01 08:00:00", "hr": 90, "spo2": 97})
	publish(t, client, "p1", map[string]interface{}{"time": "2025-03-01 08:01:00", "hr": 81, "temp": "36.5"})
	_, err := rediscommon.PublishToStream(ctx, client, testStream, map[string]interface{}{"data": "garbage"})
	require.NoError(t, err)

	proc := newFakeProcessor()
	c := newTestStreamConsumer(client, proc)

	acked, err := c.consumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, acked)
	assert.Equal(t, int64(0), pendingCount(t, client))

	p1 := proc.tables["p1"]
	assert.Equal(t, []string{models.ColumnHeartRate, models.ColumnTime, models.ColumnTemperature}, p1.Header)
	require.Len(t, p1.Rows, 2)
	assert.Equal(t, []string{"80", "2025-03-01 08:00:00", ""}, p1.Rows[0])
	assert.Equal(t, []string{"81", "2025-03-01 08:01:00", "36.5"}, p1.Rows[1])
	assert.Len(t, proc.tables["p2"].Rows, 1)
}

func TestStreamConsumer_AckPolicy(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testStream, "g"))

	publish(t, client, "bad-schema", map[string]interface{}{"pulse": 80})
	publish(t, client, "db-down", map[string]interface{}{"hr": 80})

	proc := newFakeProcessor()
	proc.errs["bad-schema"] = &transformer.SchemaError{Missing: []string{"Time"}}
	proc.errs["db-down"] = errors.New("connection refused")
	c := newTestStreamConsumer(client, proc)

	acked, err := c.consumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, acked)
	assert.Equal(t, int64(1), pendingCount(t, client))
}

func TestStreamConsumer_EmptyStream(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testStream, "g"))

	acked, err := newTestStreamConsumer(client, newFakeProcessor()).consumeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, acked)
}

func TestBuildTable_NumberFormatting(t *testing.T) {
	table := BuildTable([]*models.VitalMessage{
		{Payload: map[string]interface{}{"a": 36.6, "b": json.Number("97"), "c": nil, "d": true}},
	})
	assert.Equal(t, []string{"a", "b", "c", "d"}, table.Header)
	assert.Equal(t, []string{"36.6", "97", "", "true"}, table.Rows[0])
}

func TestBuildTable_MixedAliasesShareColumn(t *testing.T) {
	table := BuildTable([]*models.VitalMessage{
		{Payload: map[string]interface{}{"time": "2025-03-01 08:00:00", "hr": 80.0, "spo2": 97.0, "temp": 36.8}},
		{Payload: map[string]interface{}{"timestamp": "2025-03-01 08:01:00", "heart_rate": 130.0, "SpO2": 96.0, "temperature": 36.9}},
	})

	require.Len(t, table.Header, 4)
	require.Len(t, table.Rows, 2)
	hr := table.Index(models.ColumnHeartRate)
	require.GreaterOrEqual(t, hr, 0)
	assert.Equal(t, "80", table.Rows[0][hr])
	assert.Equal(t, "130", table.Rows[1][hr])
	assert.Equal(t, "2025-03-01 08:01:00", table.Rows[1][table.Index(models.ColumnTime)])

	// 同一条消息内出现多个别名时，标准名优先
	table = BuildTable([]*models.VitalMessage{
		{Payload: map[string]interface{}{"HR (bpm)": 90.0, "hr": 70.0}},
	})
	assert.Equal(t, []string{models.ColumnHeartRate}, table.Header)
	assert.Equal(t, []string{"90"}, table.Rows[0])
}

func TestStreamConsumer_RetriesPendingAfterTransientError(t *testing.T) {
	client := setupTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publish(t, client, "p1", map[string]interface{}{"time": "2025-03-01 08:00:00", "hr": 80})

	proc := newFakeProcessor()
	proc.failOnce["p1"] = errors.New("connection refused")
	c := newTestStreamConsumer(client, proc)

	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool {
		return proc.callCount("p1") >= 2 && pendingCount(t, client) == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Equal(t, 2, proc.callCount("p1"))
}

func TestStreamConsumer_RecoversPendingOnStartup(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, rediscommon.CreateConsumerGroup(ctx, client, testStream, "g"))

	publish(t, client, "p1", map[string]interface{}{"time": "2025-03-01 08:00:00", "hr": 80})

	// 上一个进程读取后未确认就退出
	first := newFakeProcessor()
	first.errs["p1"] = errors.New("connection refused")
	_, err := newTestStreamConsumer(client, first).consumeOnce(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), pendingCount(t, client))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	second := newFakeProcessor()
	done := make(chan error, 1)
	go func() { done <- newTestStreamConsumer(client, second).Start(runCtx) }()

	require.Eventually(t, func() bool {
		return second.callCount("p1") == 1 && pendingCount(t, client) == 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
