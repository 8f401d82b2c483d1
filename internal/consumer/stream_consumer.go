package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	rediscommon "vital-monitor/common/redis"
	"vital-monitor/internal/models"
	"vital-monitor/internal/transformer"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReadingsProcessor 处理单个患者的一批读数（service.MonitorService 实现）
type ReadingsProcessor interface {
	ProcessReadings(ctx context.Context, patientID string, table models.Table) error
}

// StreamConfig 流消费配置
type StreamConfig struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	Workers       int
	Block         time.Duration // < 0 表示不阻塞
}

// StreamConsumer 读数流消费者：按患者分组，并行处理不同患者
type StreamConsumer struct {
	config      StreamConfig
	redisClient *redis.Client
	processor   ReadingsProcessor
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg StreamConfig,
	redisClient *redis.Client,
	processor ReadingsProcessor,
	logger *zap.Logger,
) *StreamConsumer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		processor:   processor,
		logger:      logger,
	}
}

// Start 启动消费循环，ctx 取消时返回
func (c *StreamConsumer) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup); err != nil {
		return err
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.config.Stream),
		zap.String("consumer_group", c.config.ConsumerGroup),
		zap.String("consumer_name", c.config.ConsumerName),
		zap.Int("workers", c.config.Workers),
	)

	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	// 启动时先从 "0" 重读本消费者遗留的 pending 条目（上次临时错误或进程退出时未确认）
	pending := true

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		startID := ">"
		if pending {
			startID = "0"
		}

		read, acked, err := c.consume(ctx, startID)
		if err == nil && pending && read > 0 && acked == 0 {
			err = fmt.Errorf("no progress on %d pending entries", read)
		}
		switch {
		case read > acked:
			pending = true
		case pending:
			pending = read > 0
		}

		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to consume readings stream",
				zap.Error(err),
				zap.Duration("backoff", backoffDuration),
			)

			// 指数退避
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoffDuration):
				backoffDuration *= 2
				if backoffDuration > maxBackoff {
					backoffDuration = maxBackoff
				}
			}
			continue
		}
		backoffDuration = time.Second
	}
}

// patientBatch 同一患者的一组消息（保持流顺序）
type patientBatch struct {
	patientID string
	ids       []string
	messages  []*models.VitalMessage
}

// consumeOnce 读取并处理一批新消息，返回已确认的消息数
func (c *StreamConsumer) consumeOnce(ctx context.Context) (int, error) {
	_, acked, err := c.consume(ctx, ">")
	return acked, err
}

// consume 从 startID 读取一批消息并处理（">" 为新消息，"0" 为本消费者的 pending 条目）
// 返回读取数和已确认数；两者之差为因临时错误保留在 pending 中的条目
func (c *StreamConsumer) consume(ctx context.Context, startID string) (int, int, error) {
	messages, err := rediscommon.ReadGroupFrom(
		ctx,
		c.redisClient,
		c.config.Stream,
		c.config.ConsumerGroup,
		c.config.ConsumerName,
		startID,
		c.config.BatchSize,
		c.config.Block,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read from stream %s: %w", c.config.Stream, err)
	}
	if len(messages) == 0 {
		return 0, 0, nil
	}

	var invalid []string
	batches := make(map[string]*patientBatch)
	var order []string
	for _, msg := range messages {
		vm, err := models.ParseVitalMessage(msg.Values)
		if err != nil {
			c.logger.Warn("Discarding invalid stream message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			invalid = append(invalid, msg.ID)
			continue
		}
		b, ok := batches[vm.PatientID]
		if !ok {
			b = &patientBatch{patientID: vm.PatientID}
			batches[vm.PatientID] = b
			order = append(order, vm.PatientID)
		}
		b.ids = append(b.ids, msg.ID)
		b.messages = append(b.messages, vm)
	}

	acked := 0
	if err := rediscommon.AckMessages(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup, invalid...); err != nil {
		c.logger.Error("Failed to ack invalid messages", zap.Error(err))
	} else {
		acked += len(invalid)
	}

	// 不同患者互不依赖，并行处理
	ackCh := make(chan int, len(order))
	var g errgroup.Group
	g.SetLimit(c.config.Workers)
	for _, patientID := range order {
		b := batches[patientID]
		g.Go(func() error {
			ackCh <- c.processBatch(ctx, b)
			return nil
		})
	}
	_ = g.Wait()
	close(ackCh)
	for n := range ackCh {
		acked += n
	}
	return len(messages), acked, nil
}

// processBatch 处理单个患者；成功或数据质量错误时确认消息，其余错误保留在 pending 中
func (c *StreamConsumer) processBatch(ctx context.Context, b *patientBatch) int {
	table := BuildTable(b.messages)
	err := c.processor.ProcessReadings(ctx, b.patientID, table)
	if err != nil {
		if !transformer.IsDataQuality(err) {
			c.logger.Error("Failed to process readings",
				zap.String("patient_id", b.patientID),
				zap.Int("messages", len(b.ids)),
				zap.Error(err),
			)
			return 0
		}
		c.logger.Warn("Rejected readings batch",
			zap.String("patient_id", b.patientID),
			zap.Int("messages", len(b.ids)),
			zap.Error(err),
		)
	}

	if err := rediscommon.AckMessages(ctx, c.redisClient, c.config.Stream, c.config.ConsumerGroup, b.ids...); err != nil {
		c.logger.Error("Failed to ack messages",
			zap.String("patient_id", b.patientID),
			zap.Error(err),
		)
		return 0
	}
	return len(b.ids)
}

// BuildTable 将同一患者的消息转换为表格
// 每条消息的键先映射为标准列名（同一条消息内多个别名时取优先级最高者），表头为映射后列名的并集
func BuildTable(messages []*models.VitalMessage) models.Table {
	normalizer := transformer.NewSchemaNormalizer(nil)

	var header []string
	index := make(map[string]int)
	cells := make([]map[string]string, 0, len(messages))

	for _, m := range messages {
		keys := make([]string, 0, len(m.Payload))
		for k := range m.Payload {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		row := make(map[string]string, len(keys))
		ranks := make(map[string]int, len(keys))
		for _, k := range keys {
			column := k
			rank := 0
			if canonical, r, ok := normalizer.Canonical(k); ok {
				column, rank = canonical, r
				if best, seen := ranks[column]; seen && best <= rank {
					continue
				}
			}
			ranks[column] = rank
			row[column] = cellString(m.Payload[k])

			if _, ok := index[column]; !ok {
				index[column] = len(header)
				header = append(header, column)
			}
		}
		cells = append(cells, row)
	}

	rows := make([][]string, 0, len(cells))
	for _, c := range cells {
		row := make([]string, len(header))
		for column, v := range c {
			row[index[column]] = v
		}
		rows = append(rows, row)
	}
	return models.Table{Header: header, Rows: rows}
}

func cellString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
