// Package report renders estimation results: a plain-text summary and a
// convergence-history plot.
package report

import (
	"fmt"
	"io"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/gklr/estimator"
	"github.com/YuminosukeSato/gklr/pkg/errors"
)

const rule = "-------------------------------------------------------------------------"

// Summary writes a human-readable summary of r to w.
func Summary(w io.Writer, r *estimator.Result) error {
	if r == nil {
		return errors.NewValidationError("result", "nil result", nil)
	}
	rows, cols := 0, 0
	if r.Alpha != nil {
		rows, cols = r.Alpha.Dims()
	}
	lines := []string{
		rule,
		fmt.Sprintf("Method: %s", r.Method),
		fmt.Sprintf("Penalization: %s (lambda = %g)", r.Pmle, r.PmleLambda),
		fmt.Sprintf("Number of parameters: %d", rows*cols+len(r.Lambd)),
		fmt.Sprintf("Log-likelihood at zero: %.4f", r.LogLikelihoodAtZero),
		fmt.Sprintf("Initial log-likelihood: %.4f", r.InitialLogLikelihood),
		rule,
		fmt.Sprintf("Elapsed time: %s", r.ElapsedTime.Round(time.Millisecond)),
		fmt.Sprintf("Iterations: %d", r.NIterations),
		fmt.Sprintf("Success: %t (%s)", r.Success, r.Message),
		fmt.Sprintf("Final log-likelihood value: %.4f", r.FinalLogLikelihood),
		fmt.Sprintf("McFadden R^2: %.4f", r.McFaddenR2),
	}
	for i, l := range r.Lambd {
		lines = append(lines, fmt.Sprintf("Nest %d scale: %.4f", i, l))
	}
	for _, warning := range r.Warnings {
		lines = append(lines, "Warning: "+warning.Error())
	}
	lines = append(lines, rule)
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return errors.Wrap(err, "failed to write summary")
		}
	}
	return nil
}

// HistoryPlot builds a line plot of the objective history. printEvery is the
// epoch spacing between recorded values.
func HistoryPlot(history []float64, printEvery int) (*plot.Plot, error) {
	if len(history) == 0 {
		return nil, errors.NewValidationError("history", "empty history, set print_every > 0", 0)
	}
	if printEvery <= 0 {
		printEvery = 1
	}
	pts := make(plotter.XYs, len(history))
	for i, v := range history {
		pts[i].X = float64(i * printEvery)
		pts[i].Y = v
	}

	p := plot.New()
	p.Title.Text = "Convergence history"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "Penalized negative log-likelihood"
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build history line")
	}
	p.Add(line)
	return p, nil
}

// PlotHistory saves the history plot to path. The image format follows the
// file extension (png, svg, pdf, ...).
func PlotHistory(history []float64, printEvery int, path string) error {
	p, err := HistoryPlot(history, printEvery)
	if err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save history plot %s", path)
	}
	return nil
}
