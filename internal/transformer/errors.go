package transformer

import (
	"errors"
	"fmt"
	"strings"
)

// SchemaError 标准字段无法通过名称或别名解析
// Missing 列出全部缺失字段（按标准列顺序）
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// EmptyDatasetError 时间戳过滤后没有剩余数据行
type EmptyDatasetError struct {
	InputRows int
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("no rows with a valid timestamp (input rows: %d)", e.InputRows)
}

// IsDataQuality 是否为数据质量错误（确定性的，重试无意义）
func IsDataQuality(err error) bool {
	var schemaErr *SchemaError
	var emptyErr *EmptyDatasetError
	return errors.As(err, &schemaErr) || errors.As(err, &emptyErr)
}
