package simulation

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument is returned (wrapped) for any parameter the simulation
// cannot work with. Test for it with errors.Is.
var ErrInvalidArgument = errors.New("invalid argument")

// Default parameter values, matching the interactive controls.
const (
	DefaultParticipants = 100
	DefaultCorrelation  = 0.5
	DefaultSeed         = 42
)

// Params are the inputs of a simulation run.
type Params struct {
	// Correlation is the Pearson correlation between test score and
	// perceived ability. Mathematically valid range: [-1, 1].
	Correlation float64 `json:"correlation" yaml:"correlation"`

	// Participants is the number of synthetic participants (>= 1).
	Participants int `json:"participants" yaml:"participants"`

	// Seed makes the run reproducible.
	Seed int64 `json:"seed" yaml:"seed"`
}

// DefaultParams returns the parameters the original experiment UI starts with.
func DefaultParams() Params {
	return Params{
		Correlation:  DefaultCorrelation,
		Participants: DefaultParticipants,
		Seed:         DefaultSeed,
	}
}

// check enforces what Generate itself needs: a positive participant count
// and a finite correlation.
func (p Params) check() error {
	if p.Participants < 1 {
		return fmt.Errorf("%w: participants must be at least 1, got %d", ErrInvalidArgument, p.Participants)
	}
	if math.IsNaN(p.Correlation) || math.IsInf(p.Correlation, 0) {
		return fmt.Errorf("%w: correlation must be finite, got %v", ErrInvalidArgument, p.Correlation)
	}
	return nil
}

// Validate checks the parameters for callers that accept user input.
// In addition to what Generate enforces, it rejects correlations outside
// [-1, 1], where sqrt(1 - r^2) is undefined.
func (p Params) Validate() error {
	if err := p.check(); err != nil {
		return err
	}
	if p.Correlation < -1 || p.Correlation > 1 {
		return fmt.Errorf("%w: correlation must be between -1 and 1, got %v", ErrInvalidArgument, p.Correlation)
	}
	return nil
}

// String renders the parameters for log lines and headers.
func (p Params) String() string {
	return fmt.Sprintf("participants=%d correlation=%g seed=%d", p.Participants, p.Correlation, p.Seed)
}
