package transformer

import (
	"strings"

	"vital-monitor/internal/models"
)

// FieldSpec 标准字段及其别名（按声明顺序匹配）
type FieldSpec struct {
	Canonical string
	Aliases   []string
}

// DefaultFieldSpecs 默认字段别名表
func DefaultFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Canonical: models.ColumnTime, Aliases: []string{"time", "timestamp", "date_time", "datetime"}},
		{Canonical: models.ColumnHeartRate, Aliases: []string{"hr", "heart_rate", "heart rate", "hr (bpm)", "heartrate", "heart_rate_bpm"}},
		{Canonical: models.ColumnSpO2, Aliases: []string{"spo2", "spo2 (%)", "spo (%)", "spo2_percent", "oxygen"}},
		{Canonical: models.ColumnTemperature, Aliases: []string{"temp", "temperature", "temp (c)", "temperature_c", "temp_c", "body_temp"}},
	}
}

// SchemaNormalizer 列名标准化
type SchemaNormalizer struct {
	fields []FieldSpec
}

// NewSchemaNormalizer 创建标准化器，fields 为空时使用默认别名表
func NewSchemaNormalizer(fields []FieldSpec) *SchemaNormalizer {
	if len(fields) == 0 {
		fields = DefaultFieldSpecs()
	}
	return &SchemaNormalizer{fields: fields}
}

// Normalize 将别名列重命名为标准列名
// 返回新表头，数据行与输入共享；输入不被修改
func (n *SchemaNormalizer) Normalize(table models.Table) (models.Table, error) {
	header := make([]string, len(table.Header))
	copy(header, table.Header)

	claimed := make(map[int]bool, len(n.fields))
	var missing []string

	for _, f := range n.fields {
		idx := n.resolve(table.Header, f, claimed)
		if idx < 0 {
			missing = append(missing, f.Canonical)
			continue
		}
		claimed[idx] = true
		header[idx] = f.Canonical
	}

	if len(missing) > 0 {
		return models.Table{}, &SchemaError{Missing: missing}
	}
	return models.Table{Header: header, Rows: table.Rows}, nil
}

// resolve 精确匹配标准列名优先，其次按 [标准名, 别名...] 的声明顺序做大小写无关匹配
func (n *SchemaNormalizer) resolve(header []string, f FieldSpec, claimed map[int]bool) int {
	for i, h := range header {
		if !claimed[i] && h == f.Canonical {
			return i
		}
	}

	candidates := append([]string{f.Canonical}, f.Aliases...)
	for _, name := range candidates {
		want := normalizeHeader(name)
		for i, h := range header {
			if !claimed[i] && normalizeHeader(h) == want {
				return i
			}
		}
	}
	return -1
}

// Canonical 将单个列名映射为标准列名，用于逐条消息解析（各条消息可能使用不同别名）
// rank 为匹配优先级：0 为精确匹配，其余按 [标准名, 别名...] 的声明顺序递增
func (n *SchemaNormalizer) Canonical(name string) (canonical string, rank int, ok bool) {
	for _, f := range n.fields {
		if name == f.Canonical {
			return f.Canonical, 0, true
		}
	}

	got := normalizeHeader(name)
	for _, f := range n.fields {
		candidates := append([]string{f.Canonical}, f.Aliases...)
		for i, c := range candidates {
			if normalizeHeader(c) == got {
				return f.Canonical, i + 1, true
			}
		}
	}
	return "", 0, false
}

func normalizeHeader(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
