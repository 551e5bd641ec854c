package hmmlib

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// WriteSummary writes the model parameters to the parameter logger.  The
// optional state labels are used if provided.
func (hmm *CategoricalHMM) WriteSummary(labels []string, title string) {

	hmm.parlogger.Printf(title)
	hmm.parlogger.Printf("\n")

	hmm.parlogger.Printf("Initial state distribution:\n")
	hmm.writeMatrix(hmm.Init.Value(), 0, hmm.NState, 1, labels, nil)
	hmm.parlogger.Printf("\n")

	hmm.parlogger.Printf("Transition matrix:\n")
	hmm.writeMatrix(hmm.Trans.Value(), 0, hmm.NState, hmm.NState, labels, labels)
	hmm.parlogger.Printf("\n")

	for st := 0; st < hmm.NState; st++ {
		hmm.parlogger.Printf("Emission probabilities for state %d:\n", st)
		hmm.writeMatrix(hmm.Emission.Value(), st*hmm.NComp*hmm.NClass, hmm.NComp, hmm.NClass, nil, nil)
		hmm.parlogger.Printf("\n")
	}
}

// writeMatrix writes a matrix in text format to the logger
func (hmm *HMM) writeMatrix(x []float64, off, nrow, ncol int, rowlabels, collabels []string) {

	var buf bytes.Buffer

	if rowlabels != nil && nrow != len(rowlabels) {
		msg := "len(rowlabels) != nrow\n"
		_, _ = io.WriteString(os.Stderr, msg)
	}

	if collabels != nil {
		if ncol != len(collabels) {
			msg := "len(collabels) != ncol\n"
			_, _ = io.WriteString(os.Stderr, msg)
		}
		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", ""))
		}
		for _, c := range collabels {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20s", c))
		}
		hmm.parlogger.Printf(buf.String())
	}

	for i := 0; i < nrow; i++ {

		buf.Reset()

		if rowlabels != nil {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%-20s", rowlabels[i]))
		}
		for j := 0; j < ncol; j++ {
			_, _ = io.WriteString(&buf, fmt.Sprintf("%20.4f", x[off+i*ncol+j]))
		}

		hmm.parlogger.Printf(buf.String())
	}
}
