// Package errors はパイプライン全体のエラーハンドリングと警告システムを提供します。
// 致命的なエラー（ステージを中断する）と非致命的な警告（診断情報として集計される）を区別し、
// 構造化されたエラー情報を提供します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("tabpipe-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// UnseenCategoryWarningなどのカスタム警告の処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// UnseenCategoryWarning は適用時に学習時に存在しなかったカテゴリ値が現れ、
// 予約済みのセンチネルコードに置換された場合の警告です。実行は継続されます。
type UnseenCategoryWarning struct {
	Column   string
	Count    int
	Sentinel int
}

func (w *UnseenCategoryWarning) Error() string {
	return fmt.Sprintf("column %q: %d value(s) unseen during fit were encoded as sentinel %d", w.Column, w.Count, w.Sentinel)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *UnseenCategoryWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("column", w.Column).
		Int("count", w.Count).
		Int("sentinel", w.Sentinel).
		Str("type", "UnseenCategoryWarning")
}

// NewUnseenCategoryWarning は新しいUnseenCategoryWarningを作成します。
func NewUnseenCategoryWarning(column string, count, sentinel int) *UnseenCategoryWarning {
	return &UnseenCategoryWarning{Column: column, Count: count, Sentinel: sentinel}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// InputNotFoundError は入力ファイルが存在しない場合のエラーです。ステージは出力を書かずに中断します。
type InputNotFoundError struct {
	Stage string
	Path  string
}

func (e *InputNotFoundError) Error() string {
	return fmt.Sprintf("tabpipe: %s: input not found: %s", e.Stage, e.Path)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InputNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("stage", e.Stage).
		Str("path", e.Path).
		Str("type", "InputNotFoundError")
}

// NewInputNotFoundError は新しいInputNotFoundErrorを作成し、スタックトレースを付与します。
func NewInputNotFoundError(stage, path string) error {
	return errors.WithStack(&InputNotFoundError{Stage: stage, Path: path})
}

// EmptyDatasetError はデータセットに行が一つもない場合のエラーです。
type EmptyDatasetError struct {
	Op string
}

func (e *EmptyDatasetError) Error() string {
	return fmt.Sprintf("tabpipe: %s: dataset has no rows", e.Op)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyDatasetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("type", "EmptyDatasetError")
}

// NewEmptyDatasetError は新しいEmptyDatasetErrorを作成し、スタックトレースを付与します。
func NewEmptyDatasetError(op string) error {
	return errors.WithStack(&EmptyDatasetError{Op: op})
}

// InsufficientRowsError は空でない二つのパーティションを作れない場合のエラーです。
type InsufficientRowsError struct {
	Op       string
	Rows     int
	Required int
	Reason   string
}

func (e *InsufficientRowsError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("tabpipe: %s: insufficient rows (got %d, need at least %d): %s", e.Op, e.Rows, e.Required, e.Reason)
	}
	return fmt.Sprintf("tabpipe: %s: insufficient rows (got %d, need at least %d)", e.Op, e.Rows, e.Required)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *InsufficientRowsError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rows", e.Rows).
		Int("required", e.Required).
		Str("reason", e.Reason).
		Str("type", "InsufficientRowsError")
}

// NewInsufficientRowsError は新しいInsufficientRowsErrorを作成し、スタックトレースを付与します。
func NewInsufficientRowsError(op string, rows, required int, reason string) error {
	return errors.WithStack(&InsufficientRowsError{Op: op, Rows: rows, Required: required, Reason: reason})
}

// NotFittedError は未学習のトランスフォーマーで `Apply` を呼び出した場合のエラーです。
// 公開されたオーケストレーション経由では到達しないプログラミング上の欠陥を示します。
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("tabpipe: %s: this transformer is not fitted yet. Call Fit before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError は新しいNotFittedErrorを作成し、スタックトレースを付与します。
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// SchemaMismatchError は学習・テストのテーブル（またはレジャー）の列構成が一致しない場合のエラーです。
type SchemaMismatchError struct {
	Op       string
	Expected []string
	Got      []string
	Detail   string
}

func (e *SchemaMismatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("tabpipe: %s: schema mismatch: %s (expected %v, got %v)", e.Op, e.Detail, e.Expected, e.Got)
	}
	return fmt.Sprintf("tabpipe: %s: schema mismatch (expected %v, got %v)", e.Op, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *SchemaMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Strs("expected", e.Expected).
		Strs("got", e.Got).
		Str("detail", e.Detail).
		Str("type", "SchemaMismatchError")
}

// NewSchemaMismatchError は新しいSchemaMismatchErrorを作成し、スタックトレースを付与します。
func NewSchemaMismatchError(op string, expected, got []string, detail string) error {
	return errors.WithStack(&SchemaMismatchError{Op: op, Expected: expected, Got: got, Detail: detail})
}

// ColumnError は列単位のfit/apply失敗に列名を付与するエラーです。
type ColumnError struct {
	Column string
	Op     string
	Err    error
}

func (e *ColumnError) Error() string {
	return fmt.Sprintf("tabpipe: column %q: %s: %v", e.Column, e.Op, e.Err)
}

func (e *ColumnError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ColumnError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("operation", e.Op).
		AnErr("cause", e.Err).
		Str("type", "ColumnError")
}

// NewColumnError は新しいColumnErrorを作成し、スタックトレースを付与します。
func NewColumnError(column, op string, err error) error {
	return errors.WithStack(&ColumnError{Column: column, Op: op, Err: err})
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tabpipe: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

// ValueError は値が不適切な場合に発生するエラーです。
// 例えば、数値列に数値として解釈できない値が含まれていた場合など。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("tabpipe: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrEmptyData は空のデータが渡された場合のエラーです。
	ErrEmptyData = New("empty data")
)
