package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"vital-monitor/internal/models"
	"vital-monitor/internal/store"
	"vital-monitor/internal/transformer"
)

var (
	// ErrCacheMiss 表示缓存不存在
	ErrCacheMiss = errors.New("dataset cache miss")
	// ErrInvalidHash 内容哈希不是 64 位十六进制
	ErrInvalidHash = errors.New("invalid content hash")
)

const datasetKeyPrefix = "vitals:dataset:"

// CachedDataset 缓存内容：清洗后的数据集及清洗统计
type CachedDataset struct {
	Dataset models.Dataset            `json:"dataset"`
	Stats   transformer.SanitizeStats `json:"stats"`
}

// DatasetCache 按文件内容哈希缓存清洗结果，显式失效
type DatasetCache struct {
	kv  store.KV
	ttl time.Duration
}

// NewDatasetCache 创建数据集缓存
func NewDatasetCache(kv store.KV, ttl time.Duration) *DatasetCache {
	return &DatasetCache{kv: kv, ttl: ttl}
}

// ContentHash 文件内容的 sha256（十六进制），上传响应通过 X-Dataset-Hash 返回
func ContentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// KeyFor 缓存 key：vitals:dataset:{sha256}
func KeyFor(content []byte) string {
	return datasetKeyPrefix + ContentHash(content)
}

// HashKey 由内容哈希得到缓存 key；哈希格式不合法时返回 ErrInvalidHash
func HashKey(hash string) (string, error) {
	if len(hash) != sha256.Size*2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	return datasetKeyPrefix + strings.ToLower(hash), nil
}

// Get 读取缓存
func (c *DatasetCache) Get(ctx context.Context, key string) (*CachedDataset, error) {
	raw, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrMiss) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get dataset cache: %w", err)
	}

	var cached CachedDataset
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset cache: %w", err)
	}
	return &cached, nil
}

// Put 写入缓存
func (c *DatasetCache) Put(ctx context.Context, key string, ds models.Dataset, stats transformer.SanitizeStats) error {
	data, err := json.Marshal(CachedDataset{Dataset: ds, Stats: stats})
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}
	if err := c.kv.Set(ctx, key, string(data), c.ttl); err != nil {
		return fmt.Errorf("failed to set dataset cache: %w", err)
	}
	return nil
}

// Invalidate 删除缓存
func (c *DatasetCache) Invalidate(ctx context.Context, key string) error {
	return c.kv.Del(ctx, key)
}
