package errors

import (
	"fmt"
	"math"
)

// CheckFinite returns a ValueError locating the first NaN or ±Inf cell.
func CheckFinite(operation string, m interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				continue
			}
			return NewValueError(operation, fmt.Sprintf("non-finite value %v at row %d, column %d", v, i, j))
		}
	}
	return nil
}

// LogSumExp は log Σ exp(v) を最大値でずらして計算する。空なら -Inf
func LogSumExp(values []float64) float64 {
	peak := math.Inf(-1)
	for _, v := range values {
		peak = math.Max(peak, v)
	}
	if math.IsInf(peak, -1) {
		return peak
	}
	var sum float64
	for _, v := range values {
		sum += math.Exp(v - peak)
	}
	return peak + math.Log(sum)
}

// Softmax writes the normalised exponentials of values into dst, allocating
// it when nil. dst may alias values.
func Softmax(dst, values []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(values))
	}
	lse := LogSumExp(values)
	for i, v := range values {
		dst[i] = math.Exp(v - lse)
	}
	return dst
}
