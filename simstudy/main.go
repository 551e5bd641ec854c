// Simulate data from a randomly drawn categorical HMM, refit the model by EM
// from a fresh random initialization, and report how well the parameters and
// state sequences are recovered.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"golang.org/x/exp/rand"
	"gopkg.in/yaml.v3"

	"github.com/probkit/hmm/hmmlib"
	"github.com/probkit/hmm/hmmsim"
)

var (
	logger *log.Logger
)

// scenario describes one simulation study.
type scenario struct {
	NState  int     `yaml:"nstate"`
	NComp   int     `yaml:"ncomp"`
	NClass  int     `yaml:"nclass"`
	NSeq    int     `yaml:"nseq"`
	NTime   int     `yaml:"ntime"`
	MaxIter int     `yaml:"maxiter"`
	Tol     float64 `yaml:"tol"`
	Seed    uint64  `yaml:"seed"`
}

func defaultScenario() scenario {
	return scenario{
		NState:  4,
		NComp:   2,
		NClass:  8,
		NSeq:    200,
		NTime:   100,
		MaxIter: 50,
		Tol:     1e-8,
		Seed:    1,
	}
}

func readScenario(fname string) scenario {

	sc := defaultScenario()
	if fname == "" {
		return sc
	}

	fid, err := os.Open(fname)
	if err != nil {
		panic(err)
	}
	defer fid.Close()

	b, err := io.ReadAll(fid)
	if err != nil {
		panic(err)
	}
	if err := yaml.Unmarshal(b, &sc); err != nil {
		panic(err)
	}

	return sc
}

func report(logger *log.Logger, pstate, state [][]int) {

	var t, tn int
	logger.Printf("Per-sequence errors:")
	for p := range pstate {
		q, n := hmmlib.CompareStates(pstate[p], state[p])
		logger.Printf("%d %d/%d\n", p, q, n)
		t += q
		tn += n
	}
	logger.Printf("%d/%d total errors\n", t, tn)
}

func main() {

	config := flag.String("config", "", "YAML scenario file")
	logname := flag.String("logname", "simstudy", "Prefix of log file")
	reconstruct := flag.Bool("reconstruct", true, "If false, do not reconstruct states")
	flag.Parse()

	sc := readScenario(*config)

	truth, err := hmmlib.RandomCategorical(sc.Seed, sc.NState, sc.NComp, sc.NClass)
	if err != nil {
		panic(err)
	}
	truth.SetLogger(*logname + "_truth")
	truth.WriteSummary(nil, "Generating parameters:")

	src := rand.NewSource(sc.Seed + 1)
	states := hmmsim.GenStates(truth, sc.NSeq, sc.NTime, src)
	obs := hmmsim.GenObs(truth, states, src)

	model, err := hmmlib.RandomCategorical(sc.Seed+2, sc.NState, sc.NComp, sc.NClass)
	if err != nil {
		panic(err)
	}
	logger = model.SetLogger(*logname)

	logger.Printf("%d sequences\n", sc.NSeq)
	logger.Printf("%d time points per sequence\n", sc.NTime)
	logger.Printf("%d states, %d channels, %d classes\n", sc.NState, sc.NComp, sc.NClass)

	conf := hmmlib.DefaultFitConfig()
	conf.MaxIter = sc.MaxIter
	conf.Tol = sc.Tol
	conf.Progress = true

	model.WriteSummary(nil, "Starting values:")
	llfPath, err := hmmlib.Fit(model, obs, conf, logger)
	if err != nil {
		panic(err)
	}
	model.WriteSummary(nil, "Estimated parameters:")

	if len(llfPath) > 0 {
		logger.Printf("Final log-likelihood: %f", llfPath[len(llfPath)-1])
	}
	fmt.Printf("Completed %d EM iterations, logs written with prefix '%s'\n", len(llfPath), *logname)

	if !*reconstruct {
		return
	}

	pstate := model.ReconstructStates(obs)
	logger.Printf("\nViterbi reconstruction:\n")
	report(logger, pstate, states)
}
