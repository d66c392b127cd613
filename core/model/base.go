package model

// EstimatorState はモデル・変換器の学習状態を表す
type EstimatorState int

const (
	// NotFitted は未学習の状態
	NotFitted EstimatorState = iota
	// Fitted は学習済みの状態
	Fitted
)

// BaseEstimator は一度だけ学習される不変の変換器のための学習状態
//
// ゼロ値は未学習を表すため、Fit関数を経由せずに作られた値は
// IsFittedがfalseを返す。
type BaseEstimator struct {
	state EstimatorState
}

// IsFitted は学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.state == Fitted
}

// SetFitted は学習済み状態に設定する。Fit関数の中からのみ呼び出すこと。
func (e *BaseEstimator) SetFitted() {
	e.state = Fitted
}
