package simulation

import (
	"math"
	"math/rand/v2"
)

// Generate runs one simulation.
//
// It draws Participants standard-normal test scores, then as many noise
// samples, and derives perceived ability as
//
//	r*score + sqrt(1 - r^2)*noise
//
// which gives two unit-variance normals with Pearson correlation r. Both
// variables are ranked into percentiles and quartiles independently.
//
// Generate returns an error wrapping ErrInvalidArgument when Participants is
// below 1 or Correlation is not finite. It does not range-check Correlation;
// use Params.Validate for user input.
func Generate(p Params) (*Table, error) {
	if err := p.check(); err != nil {
		return nil, err
	}

	testScore, perceived := sample(p)

	n := p.Participants
	testRank := ranks(testScore)
	perceivedRank := ranks(perceived)
	bounds := quartileBounds(n)

	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			TestScorePercentile:        percentile(testRank[i], n),
			PerceivedAbilityPercentile: percentile(perceivedRank[i], n),
			TestScoreQuartile:          quartileOf(testRank[i], bounds),
			PerceivedAbilityQuartile:   quartileOf(perceivedRank[i], bounds),
		}
	}

	return &Table{Params: p, Records: records}, nil
}

// newRand returns a generator owned by a single call. Both PCG words are
// derived from the seed so any int64 is a distinct, reproducible stream.
func newRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s))
}

// sample draws the raw test score and perceived ability values.
func sample(p Params) (testScore, perceived []float64) {
	rng := newRand(p.Seed)
	n := p.Participants

	testScore = make([]float64, n)
	for i := range testScore {
		testScore[i] = rng.NormFloat64()
	}

	noise := make([]float64, n)
	for i := range noise {
		noise[i] = rng.NormFloat64()
	}

	r := p.Correlation
	scale := math.Sqrt(1 - r*r)
	perceived = make([]float64, n)
	for i := range perceived {
		perceived[i] = r*testScore[i] + scale*noise[i]
	}
	return testScore, perceived
}
