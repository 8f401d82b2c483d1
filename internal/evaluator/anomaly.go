package evaluator

import "math"

const (
	// DefaultWindow 默认滑动窗口大小（样本数）
	DefaultWindow = 12
	// DefaultZThreshold |z| 超过该值视为异常
	DefaultZThreshold = 3.0
)

// AnomalyDetector 基于滑动窗口 z-score 的统计异常检测（与阈值分类相互独立）
type AnomalyDetector struct {
	window     int
	zThreshold float64
}

// NewAnomalyDetector 创建检测器，window <= 0 时使用默认窗口
func NewAnomalyDetector(window int) *AnomalyDetector {
	if window <= 0 {
		window = DefaultWindow
	}
	return &AnomalyDetector{window: window, zThreshold: DefaultZThreshold}
}

// Window 窗口大小
func (d *AnomalyDetector) Window() int {
	return d.window
}

// Detect 对每个值计算以其结尾的窗口内 z-score
// 窗口不足、标准差为 0 或窗口内存在 NaN 时均为 false
func (d *AnomalyDetector) Detect(values []float64) []bool {
	return d.DetectWithHistory(nil, values)
}

// DetectWithHistory history 为 values 之前的已存储数据（按时间升序）
// 仅返回 values 对应的标记；history 只使用最后 window-1 个值
func (d *AnomalyDetector) DetectWithHistory(history, values []float64) []bool {
	flags := make([]bool, len(values))
	if len(values) == 0 {
		return flags
	}

	if keep := d.window - 1; len(history) > keep {
		history = history[len(history)-keep:]
	}
	series := make([]float64, 0, len(history)+len(values))
	series = append(series, history...)
	series = append(series, values...)

	offset := len(history)
	for i := range values {
		end := offset + i
		if end < d.window-1 {
			continue
		}
		flags[i] = d.isAnomaly(series[end-d.window+1 : end+1])
	}
	return flags
}

// isAnomaly 窗口最后一个值相对窗口均值与样本标准差（n-1）的 z-score
func (d *AnomalyDetector) isAnomaly(window []float64) bool {
	n := len(window)
	if n < 2 {
		return false
	}

	var sum float64
	for _, v := range window {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
		sum += v
	}
	mean := sum / float64(n)

	var sq float64
	for _, v := range window {
		diff := v - mean
		sq += diff * diff
	}
	std := math.Sqrt(sq / float64(n-1))
	if std == 0 || math.IsNaN(std) {
		return false
	}

	z := (window[n-1] - mean) / std
	return math.Abs(z) > d.zThreshold
}
