package mlmodel

import (
	"errors"
	"math"
)

// FitLinear fits a ridge regression by solving the regularized normal
// equations. Deterministic: the same rows always produce the same weights.
func FitLinear(rows [][]float64, targets []float64, l2 float64) (*LinearModel, error) {
	n := len(rows)
	if n == 0 || n != len(targets) {
		return nil, errors.New("training rows and targets must be non-empty and equal length")
	}
	d := len(rows[0])
	if d == 0 {
		return nil, errors.New("training rows have no features")
	}
	if l2 <= 0 {
		l2 = 1e-6
	}

	// Augment with a bias column; solve (X'X + l2*I) w = X'y.
	dim := d + 1
	xtx := make([][]float64, dim)
	for i := range xtx {
		xtx[i] = make([]float64, dim)
	}
	xty := make([]float64, dim)

	for r, row := range rows {
		if len(row) != d {
			return nil, errors.New("ragged training matrix")
		}
		for i := 0; i < dim; i++ {
			xi := 1.0
			if i < d {
				xi = row[i]
			}
			xty[i] += xi * targets[r]
			for j := 0; j < dim; j++ {
				xj := 1.0
				if j < d {
					xj = row[j]
				}
				xtx[i][j] += xi * xj
			}
		}
	}
	for i := 0; i < d; i++ {
		xtx[i][i] += l2
	}

	solution, err := solve(xtx, xty)
	if err != nil {
		return nil, err
	}
	return &LinearModel{Weights: solution[:d], Intercept: solution[d]}, nil
}

// FitLogistic fits a logistic classifier by full-batch gradient descent.
// Targets must be 0 or 1.
func FitLogistic(rows [][]float64, targets []float64, epochs int, learningRate float64) (*LogisticModel, error) {
	n := len(rows)
	if n == 0 || n != len(targets) {
		return nil, errors.New("training rows and targets must be non-empty and equal length")
	}
	d := len(rows[0])
	if d == 0 {
		return nil, errors.New("training rows have no features")
	}
	if epochs <= 0 {
		epochs = 200
	}
	if learningRate <= 0 {
		learningRate = 0.01
	}

	model := &LogisticModel{Weights: make([]float64, d)}
	for epoch := 0; epoch < epochs; epoch++ {
		gradW := make([]float64, d)
		gradB := 0.0
		for r, row := range rows {
			if len(row) != d {
				return nil, errors.New("ragged training matrix")
			}
			err := model.PredictProba(row) - targets[r]
			for i, x := range row {
				gradW[i] += err * x
			}
			gradB += err
		}
		scale := learningRate / float64(n)
		for i := range model.Weights {
			model.Weights[i] -= scale * gradW[i]
		}
		model.Intercept -= scale * gradB
	}
	return model, nil
}

// solve performs Gaussian elimination with partial pivoting.
func solve(a [][]float64, b []float64) ([]float64, error) {
	n := len(a)
	for col := 0; col < n; col++ {
		pivot := col
		for row := col + 1; row < n; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular feature matrix")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < n; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < n; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for row := n - 1; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < n; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}
	return x, nil
}

// MAE is the mean absolute error of predictions against targets.
func MAE(pred, target []float64) float64 {
	if len(pred) == 0 || len(pred) != len(target) {
		return 0
	}
	sum := 0.0
	for i := range pred {
		sum += math.Abs(pred[i] - target[i])
	}
	return sum / float64(len(pred))
}

// RMSE is the root mean squared error of predictions against targets.
func RMSE(pred, target []float64) float64 {
	if len(pred) == 0 || len(pred) != len(target) {
		return 0
	}
	sum := 0.0
	for i := range pred {
		diff := pred[i] - target[i]
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(pred)))
}

// R2 is the coefficient of determination.
func R2(pred, target []float64) float64 {
	if len(pred) == 0 || len(pred) != len(target) {
		return 0
	}
	mean := 0.0
	for _, t := range target {
		mean += t
	}
	mean /= float64(len(target))

	ssRes, ssTot := 0.0, 0.0
	for i := range target {
		ssRes += (target[i] - pred[i]) * (target[i] - pred[i])
		ssTot += (target[i] - mean) * (target[i] - mean)
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}

// Accuracy is the fraction of correct binary predictions.
func Accuracy(pred, target []float64) float64 {
	if len(pred) == 0 || len(pred) != len(target) {
		return 0
	}
	correct := 0
	for i := range pred {
		if (pred[i] >= 0.5) == (target[i] >= 0.5) {
			correct++
		}
	}
	return float64(correct) / float64(len(pred))
}
