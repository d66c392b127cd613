package preprocessing

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/tabpipe/dataset"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// Kind は列の意味的な種別を表す
type Kind int

const (
	// Numeric はすべての値が有限の数値として解釈できる列
	Numeric Kind = iota
	// Categorical は数値として解釈できない値を一つでも含む列
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// MarshalText はKindを "numeric" / "categorical" として書き出す
func (k Kind) MarshalText() ([]byte, error) {
	switch k {
	case Numeric, Categorical:
		return []byte(k.String()), nil
	default:
		return nil, errors.NewValueError("Kind.MarshalText", "unknown column kind "+strconv.Itoa(int(k)))
	}
}

// UnmarshalText はMarshalTextの逆変換を行う
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "numeric":
		*k = Numeric
	case "categorical":
		*k = Categorical
	default:
		return errors.NewValueError("Kind.UnmarshalText", "unknown column kind "+strconv.Quote(string(text)))
	}
	return nil
}

// ColumnSpec は列名とその種別の組
type ColumnSpec struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// ParseNumeric は値を有限の浮動小数点数として解釈する。
// 前後の空白は無視し、NaNや±Infは数値とみなさない。
func ParseNumeric(value string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Classify はデータセットの各列にColumnSpecを割り当てる
//
// 列のすべての値が数値として解釈できればNumeric、そうでなければ列全体をCategoricalとする。
// forceCategoricalに指定された列は内容にかかわらずCategoricalになる（ラベル列など）。
// 呼び出し側は学習パーティションのみを渡すこと。
//
// 戻り値のスライスはデータセットの列順と一致する。
func Classify(ds *dataset.Dataset, forceCategorical ...string) ([]ColumnSpec, error) {
	if ds == nil || ds.NumRows() == 0 {
		return nil, errors.NewEmptyDatasetError("Classify")
	}

	forced := make(map[string]bool, len(forceCategorical))
	for _, name := range forceCategorical {
		forced[name] = true
	}

	names := ds.Names()
	specs := make([]ColumnSpec, len(names))
	for j, name := range names {
		kind := Numeric
		if forced[name] || !allNumeric(ds.ColumnAt(j).Values) {
			kind = Categorical
		}
		specs[j] = ColumnSpec{Name: name, Kind: kind}
	}
	return specs, nil
}

func allNumeric(values []string) bool {
	for _, v := range values {
		if _, ok := ParseNumeric(v); !ok {
			return false
		}
	}
	return true
}

// SplitKinds は種別ごとの列名を列順のまま返す
func SplitKinds(specs []ColumnSpec) (numeric, categorical []string) {
	numeric = []string{}
	categorical = []string{}
	for _, s := range specs {
		if s.Kind == Numeric {
			numeric = append(numeric, s.Name)
		} else {
			categorical = append(categorical, s.Name)
		}
	}
	return numeric, categorical
}
