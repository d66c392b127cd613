// Package linear_model provides the linear classifier trained by the pipeline.
package linear_model

import (
	"context"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabpipe/core/model"
	"github.com/YuminosukeSato/tabpipe/core/parallel"
	"github.com/YuminosukeSato/tabpipe/pkg/errors"
)

// LogisticRegression implements L2-regularized logistic regression trained by
// gradient descent. Two classes use a single weight vector; more classes use
// one-vs-rest with one weight vector per class.
//
// Exported fields are the learned parameters and are preserved by gob.
type LogisticRegression struct {
	State *model.StateManager

	// Hyperparameters
	C            float64 // Inverse regularization strength (1/alpha)
	MaxIter      int
	Tol          float64
	FitIntercept bool
	RandomState  int64

	// Learned parameters
	Coef      [][]float64 // 1 x n_features for binary, n_classes x n_features otherwise
	Intercept []float64
	Classes   []int // Sorted class labels
	NFeatures int
	NIter     []int // Iterations run per weight vector

	workers int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		C:            1.0,
		MaxIter:      100,
		Tol:          1e-4,
		FitIntercept: true,
		RandomState:  42,
	}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// WithLRRandomState sets the seed used to initialize the weights
func WithLRRandomState(seed int64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.RandomState = seed
	}
}

// WithLRWorkers bounds how many one-vs-rest classes are fitted concurrently.
// Zero means one per CPU.
func WithLRWorkers(workers int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.workers = workers
	}
}

// Fit trains the model. y holds integer class labels stored as float64.
func (lr *LogisticRegression) Fit(X mat.Matrix, y mat.Vector) error {
	return lr.FitContext(context.Background(), X, y)
}

// FitContext is Fit with cancellation between one-vs-rest classes.
func (lr *LogisticRegression) FitContext(ctx context.Context, X mat.Matrix, y mat.Vector) error {
	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewEmptyDatasetError("LogisticRegression.Fit")
	}
	if y.Len() != nSamples {
		return errors.NewValueError("LogisticRegression.Fit",
			"X and y must have the same number of samples")
	}
	if !(lr.C > 0) {
		return errors.NewValidationError("C", "must be positive", lr.C)
	}
	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.Reset()

	lr.extractClasses(y)
	if len(lr.Classes) < 2 {
		return errors.NewValueError("LogisticRegression.Fit",
			"training labels must contain at least two classes")
	}
	lr.NFeatures = nFeatures
	lr.initializeWeights(nFeatures)

	if len(lr.Classes) == 2 {
		if err := lr.fitBinaryForClass(X, lr.binaryTargets(y, lr.Classes[1]), 0); err != nil {
			return err
		}
	} else {
		// one-vs-rest: each class owns its row of Coef
		err := parallel.ForEach(ctx, len(lr.Classes), lr.workers, func(_ context.Context, k int) error {
			if err := lr.fitBinaryForClass(X, lr.binaryTargets(y, lr.Classes[k]), k); err != nil {
				return errors.Wrapf(err, "failed to fit class %d", lr.Classes[k])
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	lr.State.SetDimensions(nFeatures, nSamples)
	lr.State.SetFitted()
	return nil
}

// extractClasses identifies unique class labels
func (lr *LogisticRegression) extractClasses(y mat.Vector) {
	seen := make(map[int]bool)
	lr.Classes = lr.Classes[:0]
	for i := 0; i < y.Len(); i++ {
		label := int(y.AtVec(i))
		if !seen[label] {
			seen[label] = true
			lr.Classes = append(lr.Classes, label)
		}
	}
	sort.Ints(lr.Classes)
}

func (lr *LogisticRegression) binaryTargets(y mat.Vector, positive int) *mat.VecDense {
	t := mat.NewVecDense(y.Len(), nil)
	for i := 0; i < y.Len(); i++ {
		if int(y.AtVec(i)) == positive {
			t.SetVec(i, 1)
		}
	}
	return t
}

// initializeWeights initializes model weights with small seeded random values
func (lr *LogisticRegression) initializeWeights(nFeatures int) {
	nVectors := len(lr.Classes)
	if nVectors == 2 {
		nVectors = 1
	}

	rng := rand.New(rand.NewSource(lr.RandomState))
	lr.Coef = make([][]float64, nVectors)
	for k := range lr.Coef {
		lr.Coef[k] = make([]float64, nFeatures)
		for j := range lr.Coef[k] {
			lr.Coef[k][j] = rng.NormFloat64() * 0.01
		}
	}
	lr.Intercept = make([]float64, nVectors)
	lr.NIter = make([]int, nVectors)
}

// fitBinaryForClass runs gradient descent for weight vector k against 0/1 targets.
func (lr *LogisticRegression) fitBinaryForClass(X mat.Matrix, target *mat.VecDense, k int) error {
	nSamples, nFeatures := X.Dims()
	weights := mat.NewVecDense(nFeatures, lr.Coef[k])
	intercept := lr.Intercept[k]
	lambda := 1.0 / lr.C

	z := mat.NewVecDense(nSamples, nil)
	residual := mat.NewVecDense(nSamples, nil)
	grad := mat.NewVecDense(nFeatures, nil)

	const baseLearningRate = 1.0

	for iter := 0; iter < lr.MaxIter; iter++ {
		z.MulVec(X, weights)
		gradIntercept := 0.0
		for i := 0; i < nSamples; i++ {
			r := sigmoid(z.AtVec(i)+intercept) - target.AtVec(i)
			residual.SetVec(i, r)
			gradIntercept += r
		}

		grad.MulVec(X.T(), residual)
		grad.ScaleVec(1/float64(nSamples), grad)
		grad.AddScaledVec(grad, lambda, weights)
		gradIntercept /= float64(nSamples)

		// decaying step size
		learningRate := baseLearningRate / (1.0 + 0.1*float64(iter))

		weights.AddScaledVec(weights, -learningRate, grad)
		if lr.FitIntercept {
			intercept -= learningRate * gradIntercept
		}
		lr.NIter[k] = iter + 1

		if err := errors.CheckScalar("LogisticRegression.Fit", intercept, iter); err != nil {
			return err
		}

		maxGrad := math.Abs(gradIntercept)
		for j := 0; j < nFeatures; j++ {
			maxGrad = math.Max(maxGrad, math.Abs(grad.AtVec(j)))
		}
		if maxGrad < lr.Tol {
			break
		}
	}

	if err := errors.CheckNumericalStability("LogisticRegression.Fit", lr.Coef[k], lr.NIter[k]); err != nil {
		return err
	}
	lr.Intercept[k] = intercept
	return nil
}

// decision returns the raw score of every weight vector for every sample.
func (lr *LogisticRegression) decision(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.State.RequireFitted("LogisticRegression", "Predict"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if fitFeatures, _ := lr.State.GetDimensions(); nFeatures != fitFeatures {
		return nil, errors.NewValueError("LogisticRegression.Predict",
			"feature count differs from the count seen during fit")
	}

	coef := mat.NewDense(len(lr.Coef), nFeatures, nil)
	for k, row := range lr.Coef {
		coef.SetRow(k, row)
	}
	scores := mat.NewDense(nSamples, len(lr.Coef), nil)
	scores.Mul(X, coef.T())
	for i := 0; i < nSamples; i++ {
		for k := range lr.Intercept {
			scores.Set(i, k, scores.At(i, k)+lr.Intercept[k])
		}
	}
	return scores, nil
}

// Predict returns the predicted class label of every sample.
func (lr *LogisticRegression) Predict(X mat.Matrix) (*mat.VecDense, error) {
	scores, err := lr.decision(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := scores.Dims()
	labels := make([]float64, nSamples)
	// 行ごとに独立なので範囲分割して並列に処理する
	parallel.Parallelize(nSamples, lr.workers, func(start, end int) {
		for i := start; i < end; i++ {
			if len(lr.Coef) == 1 {
				if sigmoid(scores.At(i, 0)) >= 0.5 {
					labels[i] = float64(lr.Classes[1])
				} else {
					labels[i] = float64(lr.Classes[0])
				}
				continue
			}
			best := 0
			for k := 1; k < len(lr.Classes); k++ {
				if scores.At(i, k) > scores.At(i, best) {
					best = k
				}
			}
			labels[i] = float64(lr.Classes[best])
		}
	})
	return mat.NewVecDense(nSamples, labels), nil
}

// predictProba returns probability estimates, one column per class in
// Classes order.
func (lr *LogisticRegression) predictProba(X mat.Matrix) (*mat.Dense, error) {
	scores, err := lr.decision(X)
	if err != nil {
		return nil, err
	}

	nSamples, _ := scores.Dims()
	nClasses := len(lr.Classes)
	probas := mat.NewDense(nSamples, nClasses, nil)

	for i := 0; i < nSamples; i++ {
		if nClasses == 2 {
			p1 := sigmoid(scores.At(i, 0))
			probas.Set(i, 0, 1-p1)
			probas.Set(i, 1, p1)
			continue
		}
		// softmax over the one-vs-rest scores
		row := scores.RawRowView(i)
		maxScore := row[0]
		for _, s := range row[1:] {
			maxScore = math.Max(maxScore, s)
		}
		sum := 0.0
		for k, s := range row {
			e := errors.StabilizeExp(s - maxScore)
			probas.Set(i, k, e)
			sum += e
		}
		for k := 0; k < nClasses; k++ {
			probas.Set(i, k, probas.At(i, k)/sum)
		}
	}
	return probas, nil
}

// Score returns the mean accuracy on the given data and labels
func (lr *LogisticRegression) Score(X mat.Matrix, y mat.Vector) (float64, error) {
	predictions, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	n := y.Len()
	if n == 0 {
		return 0, errors.NewEmptyDatasetError("LogisticRegression.Score")
	}
	correct := 0
	for i := 0; i < n; i++ {
		if predictions.AtVec(i) == y.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
		"fit_intercept": lr.FitIntercept,
		"random_state":  lr.RandomState,
	}
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + errors.StabilizeExp(-z))
}
