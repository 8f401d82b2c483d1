package ingest

import (
	"bytes"
	"context"
	"errors"

	"vital-monitor/internal/models"
	"vital-monitor/internal/pipeline"
	"vital-monitor/internal/transformer"

	"go.uber.org/zap"
)

// Loader 上传文件加载：缓存 -> 解析 -> 标准化 -> 清洗 -> 写缓存
type Loader struct {
	cache  *DatasetCache // 可为 nil
	opts   pipeline.Options
	logger *zap.Logger
}

// NewLoader 创建加载器
func NewLoader(cache *DatasetCache, opts pipeline.Options, logger *zap.Logger) *Loader {
	return &Loader{
		cache:  cache,
		opts:   opts,
		logger: logger,
	}
}

// Load 加载文件内容；缓存读写失败只记录日志
func (l *Loader) Load(ctx context.Context, filename string, content []byte) (models.Dataset, transformer.SanitizeStats, error) {
	key := KeyFor(content)

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, key)
		if err == nil {
			l.logger.Debug("Dataset cache hit",
				zap.String("filename", filename),
				zap.String("key", key),
			)
			return cached.Dataset, cached.Stats, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			l.logger.Warn("Failed to read dataset cache", zap.String("key", key), zap.Error(err))
		}
	}

	table, err := ReadTable(filename, bytes.NewReader(content))
	if err != nil {
		return models.Dataset{}, transformer.SanitizeStats{}, err
	}

	ds, stats, err := pipeline.Prepare(table, l.opts)
	if err != nil {
		return models.Dataset{}, stats, err
	}

	if stats.DroppedRows > 0 {
		l.logger.Info("Dropped rows with invalid timestamp",
			zap.String("filename", filename),
			zap.Int("dropped_rows", stats.DroppedRows),
			zap.Int("input_rows", stats.InputRows),
		)
	}

	if l.cache != nil {
		if err := l.cache.Put(ctx, key, ds, stats); err != nil {
			l.logger.Warn("Failed to write dataset cache", zap.String("key", key), zap.Error(err))
		}
	}
	return ds, stats, nil
}

// Invalidate 按内容哈希删除缓存，下次上传相同文件时重新解析和清洗
func (l *Loader) Invalidate(ctx context.Context, hash string) error {
	key, err := HashKey(hash)
	if err != nil {
		return err
	}
	if l.cache == nil {
		return nil
	}
	if err := l.cache.Invalidate(ctx, key); err != nil {
		return err
	}
	l.logger.Info("Invalidated dataset cache", zap.String("key", key))
	return nil
}
