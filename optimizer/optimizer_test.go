package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
)

func quadratic() Problem {
	return Problem{
		Func: func(x []float64, _ []int) float64 { return x[0] * x[0] },
		Grad: func(x []float64, _ []int) []float64 { return []float64{2 * x[0]} },
	}
}

// meanProblem minimizes ½ Σ_i (x − t_i)² over the batch, scaled by 1/n.
func meanProblem(targets []float64) Problem {
	n := float64(len(targets))
	return Problem{
		Func: func(x []float64, batch []int) float64 {
			f := 0.0
			for _, i := range rowsOf(batch, len(targets)) {
				d := x[0] - targets[i]
				f += 0.5 * d * d / n
			}
			return f
		},
		Grad: func(x []float64, batch []int) []float64 {
			g := 0.0
			for _, i := range rowsOf(batch, len(targets)) {
				g += (x[0] - targets[i]) / n
			}
			return []float64{g}
		},
	}
}

func rowsOf(batch []int, n int) []int {
	if batch != nil {
		return batch
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	return all
}

func TestMinimizeQuadraticConverges(t *testing.T) {
	s := DefaultSettings(1)
	s.LearningRate = 0.1
	s.GTol = 1e-4
	s.MaxIter = 1000

	res, err := Minimize(quadratic(), []float64{10}, s)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, MessageConverged, res.Message)
	assert.InDelta(t, 0, res.X[0], 1e-3)
	assert.InDelta(t, res.X[0]*res.X[0], res.Fun, 1e-15)
	assert.Less(t, res.NIterations, 1000)
	require.Len(t, res.Jac, 1)
}

func TestMinimizeDoesNotModifyX0(t *testing.T) {
	x0 := []float64{10}
	s := DefaultSettings(1)
	s.LearningRate = 0.1
	_, err := Minimize(quadratic(), x0, s)
	require.NoError(t, err)
	assert.Equal(t, []float64{10}, x0)
}

func TestMinimizeIterationLimit(t *testing.T) {
	s := DefaultSettings(1)
	s.LearningRate = 0.01
	s.GTol = 1e-8
	s.MaxIter = 5

	res, err := Minimize(quadratic(), []float64{10}, s)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, MessageMaxIter, res.Message)
	assert.Equal(t, 5, res.NIterations)
}

func TestMinimizeConvergenceOnLastEpochIsSuccess(t *testing.T) {
	s := DefaultSettings(1)
	s.LearningRate = 0.5
	s.GTol = 1e-6
	s.MaxIter = 2

	// epoch 0 jumps to 0 with a step of -10, epoch 1 takes a zero step
	res, err := Minimize(quadratic(), []float64{10}, s)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.NIterations)
	assert.Equal(t, 0.0, res.X[0])
}

func TestMinimizeDeterministic(t *testing.T) {
	targets := []float64{1, 4, -2, 7, 3, 0, 5, 2, -1, 6}
	s := DefaultSettings(len(targets))
	s.LearningRate = 0.3
	s.MiniBatchSize = 3
	s.MaxIter = 50
	s.Seed = 17

	a, err := Minimize(meanProblem(targets), []float64{0}, s)
	require.NoError(t, err)
	b, err := Minimize(meanProblem(targets), []float64{0}, s)
	require.NoError(t, err)
	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.Fun, b.Fun)

	s.Seed = 18
	c, err := Minimize(meanProblem(targets), []float64{0}, s)
	require.NoError(t, err)
	assert.NotEqual(t, a.X, c.X)
}

func TestMinimizeReporting(t *testing.T) {
	targets := []float64{1, 2, 3, 4}
	logger, _ := log.NewTestLogger(log.LevelDebug)
	var epochs []int
	var losses []float64

	s := DefaultSettings(len(targets))
	s.LearningRate = 0.5
	s.MiniBatchSize = 2
	s.MaxIter = 7
	s.GTol = 1e-12
	s.PrintEvery = 3
	s.Logger = logger
	s.Recorder = func(epoch int, loss float64) {
		epochs = append(epochs, epoch)
		losses = append(losses, loss)
	}

	_, err := Minimize(meanProblem(targets), []float64{0}, s)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 3, 6}, epochs)
	for _, l := range losses {
		assert.False(t, math.IsNaN(l))
	}
	assert.True(t, logger.ContainsField(log.EpochKey, 3.0))
	assert.True(t, logger.ContainsMessage("Epoch: 0/7"))
}

func TestMinimizeRejectsInvalidInput(t *testing.T) {
	base := func() Settings {
		s := DefaultSettings(10)
		s.LearningRate = 0.1
		return s
	}
	tests := []struct {
		name   string
		p      Problem
		x0     []float64
		mutate func(*Settings)
	}{
		{"mini batch larger than samples", quadratic(), []float64{1}, func(s *Settings) { s.MiniBatchSize = 11 }},
		{"negative mini batch", quadratic(), []float64{1}, func(s *Settings) { s.MiniBatchSize = -1 }},
		{"zero learning rate", quadratic(), []float64{1}, func(s *Settings) { s.LearningRate = 0 }},
		{"zero samples", quadratic(), []float64{1}, func(s *Settings) { s.NSamples = 0 }},
		{"zero gtol", quadratic(), []float64{1}, func(s *Settings) { s.GTol = 0 }},
		{"zero maxiter", quadratic(), []float64{1}, func(s *Settings) { s.MaxIter = 0 }},
		{"unknown method", quadratic(), []float64{1}, func(s *Settings) { s.Method = "BFGS" }},
		{"missing gradient", Problem{Func: quadratic().Func}, []float64{1}, func(*Settings) {}},
		{"missing objective", Problem{Grad: quadratic().Grad}, []float64{1}, func(*Settings) {}},
		{"empty x0", quadratic(), nil, func(*Settings) {}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, buffer := log.NewTestLogger(log.LevelDebug)
			recorded := 0
			s := base()
			s.PrintEvery = 1
			s.Logger = logger
			s.Recorder = func(int, float64) { recorded++ }
			tt.mutate(&s)

			evaluations := 0
			p := tt.p
			if p.Grad != nil {
				grad := p.Grad
				p.Grad = func(x []float64, b []int) []float64 { evaluations++; return grad(x, b) }
			}

			res, err := Minimize(p, tt.x0, s)
			require.Error(t, err)
			assert.Nil(t, res)
			assert.True(t, errors.IsConfigurationError(err), err.Error())
			assert.Zero(t, recorded)
			assert.Zero(t, evaluations)
			assert.Empty(t, buffer.String())
		})
	}
}

func TestUnknownMethodListsSupported(t *testing.T) {
	s := DefaultSettings(1)
	s.Method = "Nelder-Mead"
	_, err := Minimize(quadratic(), []float64{1}, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SGD")
}

func TestRandomMiniBatches(t *testing.T) {
	batches := RandomMiniBatches(10, 3, 5)
	require.Len(t, batches, 4)
	assert.Len(t, batches[3], 1)

	seen := make(map[int]bool)
	for _, b := range batches {
		for _, i := range b {
			assert.False(t, seen[i], "index %d repeated", i)
			seen[i] = true
		}
	}
	assert.Len(t, seen, 10)

	assert.Equal(t, batches, RandomMiniBatches(10, 3, 5))
	assert.NotEqual(t, batches, RandomMiniBatches(10, 3, 6))
	assert.Nil(t, RandomMiniBatches(0, 3, 1))

	full := RandomMiniBatches(4, 4, 1)
	require.Len(t, full, 1)
	assert.Len(t, full[0], 4)
}

func TestMemoizeJac(t *testing.T) {
	calls := 0
	m := NewMemoizeJac(func(x []float64, batch []int) (float64, []float64) {
		calls++
		return x[0] * x[0] * float64(len(batch)+1), []float64{2 * x[0]}
	})

	x := []float64{3}
	assert.Equal(t, 9.0*3, m.Func(x, []int{0, 1}))
	assert.Equal(t, []float64{6}, m.Grad(x, []int{0, 1}))
	assert.Equal(t, 1, m.Calls())

	// a different batch at the same point recomputes
	m.Grad(x, []int{0, 2})
	assert.Equal(t, 2, m.Calls())

	// nil batch differs from an empty one
	m.Func(x, nil)
	assert.Equal(t, 3, m.Calls())
	m.Func(x, []int{})
	assert.Equal(t, 4, m.Calls())

	// mutating the caller's x invalidates the cache
	x[0] = 4
	assert.Equal(t, []float64{8}, m.Grad(x, []int{}))
	assert.Equal(t, 5, m.Calls())
	assert.Equal(t, calls, m.Calls())
}

func TestMemoizeJacHalvesEvaluationsWhenReporting(t *testing.T) {
	targets := []float64{1, 2, 3, 4, 5, 6}
	p := meanProblem(targets)
	m := NewMemoizeJac(func(x []float64, batch []int) (float64, []float64) {
		return p.Func(x, batch), p.Grad(x, batch)
	})

	s := DefaultSettings(len(targets))
	s.LearningRate = 0.1
	s.MiniBatchSize = 2
	s.MaxIter = 4
	s.GTol = 1e-12
	s.PrintEvery = 1

	_, err := Minimize(m.Problem(), []float64{0}, s)
	require.NoError(t, err)
	// 4 epochs × 3 batches, plus the final full objective
	assert.Equal(t, 4*3+1, m.Calls())
}
