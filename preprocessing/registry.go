// Package preprocessing は列の分類と列単位の変換器（エンコーダー・スケーラー）を提供します。
//
// 変換器はFit関数が返す不変の値です。パラメータは学習時に一度だけ決まり、
// Applyはそれを読むだけで変更しません。
package preprocessing

import (
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// Transformer は学習済みの列単位変換器
type Transformer interface {
	// Column は対象の列名を返す
	Column() string
	// Kind は変換器が扱う列の種別を返す
	Kind() Kind
	// Apply は学習時のパラメータのみを用いて値を変換する
	Apply(values []string) (Applied, error)
}

// Fit はColumnSpecの種別に応じた変換器を学習する
func Fit(spec ColumnSpec, values []string) (Transformer, error) {
	switch spec.Kind {
	case Numeric:
		s, err := FitNumeric(spec.Name, values)
		if err != nil {
			return nil, err
		}
		return s, nil
	case Categorical:
		e, err := FitCategorical(spec.Name, values)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, errors.NewColumnError(spec.Name, "fit",
			errors.NewValueError("Fit", "unknown column kind "+spec.Kind.String()))
	}
}

// FitLabel はラベル列の変換器を学習する。カテゴリ列ならエンコーダー、
// 数値列なら標準化しないIntegerLabelを返す。
func FitLabel(spec ColumnSpec, values []string) (Transformer, error) {
	if spec.Kind != Numeric {
		return Fit(spec, values)
	}
	l, err := FitIntegerLabel(spec.Name, values)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Registry は列ごとに一つの学習済み変換器を列順に保持する。作成後は変更されない。
type Registry struct {
	transformers []Transformer
	index        map[string]int
}

// NewRegistry は変換器の列からRegistryを作成する。列名の重複はエラー。
func NewRegistry(transformers ...Transformer) (*Registry, error) {
	r := &Registry{
		transformers: make([]Transformer, len(transformers)),
		index:        make(map[string]int, len(transformers)),
	}
	for i, t := range transformers {
		if t == nil {
			return nil, errors.NewValidationError("transformers", "nil transformer", i)
		}
		if _, dup := r.index[t.Column()]; dup {
			return nil, errors.NewValidationError("transformers", "duplicate column", t.Column())
		}
		r.index[t.Column()] = i
		r.transformers[i] = t
	}
	return r, nil
}

// Len は変換器の数を返す
func (r *Registry) Len() int { return len(r.transformers) }

// At はi番目の変換器を返す
func (r *Registry) At(i int) Transformer { return r.transformers[i] }

// Lookup は列名で変換器を探す
func (r *Registry) Lookup(column string) (Transformer, bool) {
	i, ok := r.index[column]
	if !ok {
		return nil, false
	}
	return r.transformers[i], true
}

// Specs は各変換器のColumnSpecを列順に返す
func (r *Registry) Specs() []ColumnSpec {
	specs := make([]ColumnSpec, len(r.transformers))
	for i, t := range r.transformers {
		specs[i] = ColumnSpec{Name: t.Column(), Kind: t.Kind()}
	}
	return specs
}
