package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// Save はモデルをgob形式でio.Writerに書き出す
//
// パラメータ:
//   - w: 保存先のWriter（通常はartifact.Batch.Writeが渡す一時ファイル）
//   - m: 保存するモデル（エクスポートされたフィールドのみが保存される）
//
// 戻り値:
//   - error: エンコードに失敗した場合のエラー
func Save(w io.Writer, m interface{}) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// Load はio.Readerからモデルを読み込む
//
// パラメータ:
//   - r: 読み込み元のReader
//   - m: 読み込み先のモデル（ポインタ）
//
// 戻り値:
//   - error: デコードに失敗した場合のエラー
func Load(r io.Reader, m interface{}) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}

// LoadFile はファイルからモデルを読み込む。ファイルが無い場合はInputNotFoundError。
//
// 使用例:
//
//	var clf linear_model.LogisticRegression
//	err := model.LoadFile("out/model.gob", &clf)
func LoadFile(path string, m interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewInputNotFoundError("model", path)
		}
		return errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	return Load(file, m)
}
