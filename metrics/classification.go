// Package metrics は分類モデルの評価指標を提供します。
package metrics

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// ClassScore は一つのクラスに対する評価結果
type ClassScore struct {
	Label     int     `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1_score"`
	Support   int     `json:"support"`
}

// Report は分類結果の評価レポート
type Report struct {
	Accuracy float64      `json:"accuracy"`
	F1       float64      `json:"f1_score"` // サポートで重み付けしたF1
	Classes  []ClassScore `json:"classes"`

	// Confusion は行が正解、列が予測の混同行列。並びはClassesと同じ。
	Confusion [][]int `json:"confusion_matrix"`
}

func validate(op string, yTrue, yPred mat.Vector) (int, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError(op, "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewValueError(op, "yTrue and yPred must have the same length")
	}
	return n, nil
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred mat.Vector) (float64, error) {
	n, err := validate("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if int(yTrue.AtVec(i)) == int(yPred.AtVec(i)) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationReport はクラスごとの適合率・再現率・F1を計算する
//
// クラスは正解ラベルと予測ラベルの和集合を昇順に並べたもの。
// 分母が0になる指標は0とする。
func ClassificationReport(yTrue, yPred mat.Vector) (*Report, error) {
	n, err := validate("ClassificationReport", yTrue, yPred)
	if err != nil {
		return nil, err
	}

	truePos := make(map[int]int)
	predCount := make(map[int]int)
	support := make(map[int]int)
	correct := 0

	for i := 0; i < n; i++ {
		t, p := int(yTrue.AtVec(i)), int(yPred.AtVec(i))
		support[t]++
		predCount[p]++
		if t == p {
			truePos[t]++
			correct++
		}
	}

	labels := make([]int, 0, len(support)+len(predCount))
	for l := range support {
		labels = append(labels, l)
	}
	for l := range predCount {
		if _, ok := support[l]; !ok {
			labels = append(labels, l)
		}
	}
	sort.Ints(labels)

	report := &Report{
		Accuracy: float64(correct) / float64(n),
		Classes:  make([]ClassScore, len(labels)),
	}
	for k, l := range labels {
		cs := ClassScore{Label: l, Support: support[l]}
		if predCount[l] > 0 {
			cs.Precision = float64(truePos[l]) / float64(predCount[l])
		}
		if support[l] > 0 {
			cs.Recall = float64(truePos[l]) / float64(support[l])
		}
		if cs.Precision+cs.Recall > 0 {
			cs.F1 = 2 * cs.Precision * cs.Recall / (cs.Precision + cs.Recall)
		}
		report.Classes[k] = cs
		report.F1 += cs.F1 * float64(cs.Support)
	}
	report.F1 /= float64(n)

	cm, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	report.Confusion = make([][]int, len(labels))
	for r := range labels {
		report.Confusion[r] = make([]int, len(labels))
		for c := range labels {
			report.Confusion[r][c] = int(cm.At(r, c))
		}
	}

	return report, nil
}

// F1Weighted はサポートで重み付けしたF1スコアを計算する
func F1Weighted(yTrue, yPred mat.Vector) (float64, error) {
	r, err := ClassificationReport(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return r.F1, nil
}

// ConfusionMatrix は混同行列を返す。行が正解、列が予測で、labelsの順に並ぶ。
func ConfusionMatrix(yTrue, yPred mat.Vector, labels []int) (*mat.Dense, error) {
	n, err := validate("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, errors.NewValueError("ConfusionMatrix", "labels must not be empty")
	}

	index := make(map[int]int, len(labels))
	for k, l := range labels {
		index[l] = k
	}
	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := 0; i < n; i++ {
		r, okT := index[int(yTrue.AtVec(i))]
		c, okP := index[int(yPred.AtVec(i))]
		if okT && okP {
			cm.Set(r, c, cm.At(r, c)+1)
		}
	}
	return cm, nil
}
