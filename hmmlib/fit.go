package hmmlib

import (
	"io"
	"log"

	"github.com/schollz/progressbar"
)

// FitConfig controls the EM iteration loop.
type FitConfig struct {

	// Maximum number of EM iterations
	MaxIter int

	// Stop when the log-likelihood improves by less than this amount
	Tol float64

	// If true, draw a progress bar on standard output
	Progress bool
}

// DefaultFitConfig returns the fitting configuration used when the caller has
// no opinion.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		MaxIter: 100,
		Tol:     1e-8,
	}
}

// Fit estimates the model parameters by EM (Baum-Welch), repeatedly calling
// EStep then MStep until the log-likelihood converges or MaxIter is reached.
// It returns the log-likelihood path, one value per completed iteration.  The
// log-likelihood is evaluated at the parameters each E-step reads, so the
// final M-step's parameters are not reflected in the last path entry.
func Fit(model EmissionModel, batch [][]int, conf FitConfig, logger *log.Logger) ([]float64, error) {

	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	var bar *progressbar.ProgressBar
	if conf.Progress {
		bar = progressbar.New(conf.MaxIter)
	}

	var llf float64
	llfPath := make([]float64, 0, conf.MaxIter)

	for i := 0; i < conf.MaxIter; i++ {

		stats := model.EStep(batch)

		var llfnew float64
		for _, s := range stats {
			llfnew += s.LogLik()
		}

		if err := model.MStep(batch, stats); err != nil {
			return llfPath, err
		}

		if bar != nil {
			_ = bar.Add(1)
		}

		llfPath = append(llfPath, llfnew)
		logger.Printf("llf=%f\n", llfnew)

		if i > 0 {
			if llfnew < llf-1e-10 {
				logger.Printf("Log-likelihood decreased by %f\n", llf-llfnew)
			} else if llfnew-llf < conf.Tol {
				logger.Printf("Converged at iteration %d\n", i)
				break
			}
		}

		llf = llfnew
	}

	return llfPath, nil
}
