package models

// 标准列名（CSV 契约，逐字节一致）
const (
	ColumnTime        = "Time"
	ColumnHeartRate   = "HR (bpm)"
	ColumnSpO2        = "SpO₂ (%)"
	ColumnTemperature = "Temp (°C)"
	ColumnStatus      = "Status"
)

// CanonicalColumns 标准列顺序
var CanonicalColumns = []string{ColumnTime, ColumnHeartRate, ColumnSpO2, ColumnTemperature}

// Table 未类型化的表格数据（表头 + 字符串行）
// 行长度可能与表头不一致，缺失单元格按空字符串处理
type Table struct {
	Header []string
	Rows   [][]string
}

// Index 返回列下标，不存在时返回 -1
func (t Table) Index(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Cell 读取单元格，越界返回空字符串
func (t Table) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Column 按列名返回整列的值
func (t Table) Column(name string) ([]string, bool) {
	idx := t.Index(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]string, len(t.Rows))
	for i := range t.Rows {
		out[i] = t.Cell(i, idx)
	}
	return out, true
}
