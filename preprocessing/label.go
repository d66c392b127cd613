package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/tabpipe/core/model"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// maxLabel を超える絶対値のラベルはクラス番号として扱わない
const maxLabel = 1 << 31

// IntegerLabel は数値のラベル列を標準化せず、そのまま整数クラスとして通す変換器
//
// ラベルを数値のまま扱う場合、すべての値が整数でなければならない。
// 連続値のラベルは分類の目的変数にならないのでエラーになる。
type IntegerLabel struct {
	state model.BaseEstimator

	column string
}

// FitIntegerLabel は学習列の値がすべて整数であることを確認する
func FitIntegerLabel(column string, values []string) (*IntegerLabel, error) {
	if len(values) == 0 {
		return nil, errors.NewColumnError(column, "fit", errors.ErrEmptyData)
	}
	if _, err := parseLabels(values); err != nil {
		return nil, errors.NewColumnError(column, "fit", err)
	}
	l := &IntegerLabel{column: column}
	l.state.SetFitted()
	return l, nil
}

// Column は対象の列名を返す
func (l *IntegerLabel) Column() string { return l.column }

// Kind は常にNumeric
func (l *IntegerLabel) Kind() Kind { return Numeric }

// Apply は値を変換せずに返す。整数でない値はエラー。
func (l *IntegerLabel) Apply(values []string) (Applied, error) {
	if l == nil || !l.state.IsFitted() {
		return Applied{}, errors.NewNotFittedError("IntegerLabel", "Apply")
	}
	x, err := parseLabels(values)
	if err != nil {
		return Applied{}, errors.NewColumnError(l.column, "apply", err)
	}
	return Applied{Values: x}, nil
}

// IsClassLabel reports whether v can be used as a class label.
func IsClassLabel(v float64) bool {
	return v == math.Trunc(v) && math.Abs(v) < maxLabel
}

func parseLabels(values []string) ([]float64, error) {
	x, err := parseColumn(values)
	if err != nil {
		return nil, err
	}
	for i, v := range x {
		if !IsClassLabel(v) {
			return nil, errors.NewValueError("label", fmt.Sprintf("row %d: %q is not an integer class label", i, values[i]))
		}
	}
	return x, nil
}
