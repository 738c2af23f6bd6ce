// Package gklr estimates kernel logit models: multinomial and nested logit
// discrete-choice models whose utilities are linear in a kernel feature
// space instead of in the raw attributes.
//
// A model is fitted in three steps. The training data is turned into a
// kernel matrix with one block per alternative, the penalized log-likelihood
// is minimized over one weight column per alternative (plus one scale per
// nest for nested models), and the fitted weights are used to predict
// choice probabilities on the training or on a test kernel.
//
// # Quick Start
//
//	data, err := dataset.ReadCSVFile("train.csv")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cfg := config.Default()
//	cfg.ChoiceColumn = "choice"
//	cfg.Attributes = map[int][]string{
//	    1: {"price_1", "time_1"},
//	    2: {"price_2", "time_2"},
//	    3: {"price_3", "time_3"},
//	}
//
//	m, err := gklr.NewKernelModel(gklr.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.SetKernelTrain(data, "", nil, nil); err != nil {
//	    log.Fatal(err)
//	}
//	if err := m.Fit(gklr.FitOptions{}); err != nil {
//	    log.Fatal(err)
//	}
//	res, _ := m.Results()
//	fmt.Println("McFadden R^2:", res.McFaddenR2)
//
// # Packages
//
//   - kernel: kernel functions, landmark (Nyström) approximation, Matrix
//   - calcs: log-likelihood, gradient and probabilities for flat and nested logit
//   - optimizer: mini-batch stochastic gradient descent with memoization
//   - estimator: penalized estimation, method dispatch and results
//   - config: hyperparameters, YAML files and validation
//   - metrics: accuracy, log-loss and McFadden R²
//   - report: text summary and convergence plot
//   - core/dataset: column-oriented float64 tables and CSV reading
//   - core/model: fitted state and weight snapshots
//
// The command gklr (cmd/gklr) wraps the same flow for CSV files and a YAML
// config.
package gklr
