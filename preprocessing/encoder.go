package preprocessing

import (
	"github.com/YuminosukeSato/tabpipe/core/model"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// UnseenCode は学習時に存在しなかったカテゴリ値に割り当てられる予約済みコード。
// 学習時に割り当てられるコードは常に0以上なので衝突しない。
const UnseenCode = -1

// Applied は列に変換を適用した結果
type Applied struct {
	// Values は変換後の値（入力と同じ順序）
	Values []float64
	// Substituted[i] はValues[i]がUnseenCodeで置換された場合にtrue。
	// 数値列ではnil。
	Substituted []bool
	// Unseen は置換された値の数
	Unseen int
}

// CategoricalEncoder はカテゴリ値を整数コードに写像するエンコーダー
//
// コードは学習列で最初に現れた順に0から割り当てられる。
// FitCategoricalで作成された後は変更されない。
type CategoricalEncoder struct {
	state model.BaseEstimator

	column     string
	codes      map[string]int
	categories []string
}

// FitCategorical は学習列の値からエンコーダーを構築する
//
// パラメータ:
//   - column: 列名
//   - values: 学習パーティションの生の値
//
// 戻り値:
//   - *CategoricalEncoder: 学習済みエンコーダー
//   - error: 値が空の場合
func FitCategorical(column string, values []string) (*CategoricalEncoder, error) {
	if len(values) == 0 {
		return nil, errors.NewColumnError(column, "fit", errors.ErrEmptyData)
	}

	enc := &CategoricalEncoder{
		column: column,
		codes:  make(map[string]int),
	}
	for _, v := range values {
		if _, ok := enc.codes[v]; ok {
			continue
		}
		enc.codes[v] = len(enc.categories)
		enc.categories = append(enc.categories, v)
	}
	enc.state.SetFitted()
	return enc, nil
}

// Column は対象の列名を返す
func (e *CategoricalEncoder) Column() string { return e.column }

// Kind はCategoricalを返す
func (e *CategoricalEncoder) Kind() Kind { return Categorical }

// Categories は学習時に観測されたカテゴリをコード順に返す
func (e *CategoricalEncoder) Categories() []string {
	return append([]string(nil), e.categories...)
}

// Code は値に対応するコードを返す。未知の値の場合は (UnseenCode, false)。
func (e *CategoricalEncoder) Code(value string) (int, bool) {
	code, ok := e.codes[value]
	if !ok {
		return UnseenCode, false
	}
	return code, true
}

// Apply は学習時のマッピングで値をエンコードする。
// 未知の値はエラーにせずUnseenCodeに置換し、その数をApplied.Unseenに記録する。
func (e *CategoricalEncoder) Apply(values []string) (Applied, error) {
	if e == nil || !e.state.IsFitted() {
		return Applied{}, errors.NewNotFittedError("CategoricalEncoder", "Apply")
	}

	out := Applied{
		Values:      make([]float64, len(values)),
		Substituted: make([]bool, len(values)),
	}
	for i, v := range values {
		code, ok := e.Code(v)
		if !ok {
			out.Substituted[i] = true
			out.Unseen++
		}
		out.Values[i] = float64(code)
	}
	return out, nil
}
