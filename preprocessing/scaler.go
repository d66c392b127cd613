package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/tabpipe/core/model"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// constantStdThreshold 未満の標準偏差は定数列とみなす
const constantStdThreshold = 1e-8

// NumericScaler は学習列の平均と母標準偏差で値を標準化するスケーラー
//
// 標準偏差がほぼ0の列（定数列）ではConstantフラグが立ち、
// Applyは除算せずに平均を引いた値だけを返す。
type NumericScaler struct {
	state model.BaseEstimator

	column   string
	mean     float64
	std      float64
	constant bool
}

// FitNumeric は学習列から平均と標準偏差を計算する
//
// パラメータ:
//   - column: 列名
//   - values: 学習パーティションの生の値（すべて数値であること）
//
// 戻り値:
//   - *NumericScaler: 学習済みスケーラー
//   - error: 値が空、または数値でない値を含む場合
func FitNumeric(column string, values []string) (*NumericScaler, error) {
	if len(values) == 0 {
		return nil, errors.NewColumnError(column, "fit", errors.ErrEmptyData)
	}
	x, err := parseColumn(values)
	if err != nil {
		return nil, errors.NewColumnError(column, "fit", err)
	}

	mean, std := stat.PopMeanStdDev(x, nil)
	if err := errors.CheckScalar("NumericScaler.Fit", mean, 0); err != nil {
		return nil, errors.NewColumnError(column, "fit", err)
	}

	s := &NumericScaler{
		column:   column,
		mean:     mean,
		std:      std,
		constant: math.IsNaN(std) || std < constantStdThreshold,
	}
	s.state.SetFitted()
	return s, nil
}

// Column は対象の列名を返す
func (s *NumericScaler) Column() string { return s.column }

// Kind はNumericを返す
func (s *NumericScaler) Kind() Kind { return Numeric }

// Mean は学習時の平均を返す
func (s *NumericScaler) Mean() float64 { return s.mean }

// Std は学習時の母標準偏差を返す
func (s *NumericScaler) Std() float64 { return s.std }

// Constant は学習列が定数列だった場合にtrueを返す
func (s *NumericScaler) Constant() bool { return s.constant }

// Apply は学習時のパラメータで値を標準化する
func (s *NumericScaler) Apply(values []string) (Applied, error) {
	if s == nil || !s.state.IsFitted() {
		return Applied{}, errors.NewNotFittedError("NumericScaler", "Apply")
	}
	x, err := parseColumn(values)
	if err != nil {
		return Applied{}, errors.NewColumnError(s.column, "apply", err)
	}

	out := Applied{Values: make([]float64, len(x))}
	for i, v := range x {
		if s.constant {
			out.Values[i] = v - s.mean
		} else {
			out.Values[i] = (v - s.mean) / s.std
		}
	}
	return out, nil
}

func parseColumn(values []string) ([]float64, error) {
	x := make([]float64, len(values))
	for i, raw := range values {
		v, ok := ParseNumeric(raw)
		if !ok {
			return nil, errors.NewValueError("parse", fmt.Sprintf("row %d: %q is not a finite number", i, raw))
		}
		x[i] = v
	}
	return x, nil
}
