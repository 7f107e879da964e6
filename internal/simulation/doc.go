// Package simulation generates the synthetic participants of a Dunning-Kruger
// experiment and the views derived from them.
//
// Each participant has an "actual test score" and a "perceived ability" drawn
// from two unit-variance normal variables with a chosen Pearson correlation.
// Both variables are ranked into integer percentiles and binned into
// equal-frequency quartiles. The resulting Table feeds a scatter view, the
// quartile-average view and a summary.
//
// Generation is a pure function of its parameters: every call builds its own
// seeded generator, so the same Params always reproduce the same Table
// regardless of what ran before.
//
// Usage:
//
//	table, err := simulation.Generate(simulation.Params{
//	    Correlation:  0.5,
//	    Participants: 100,
//	    Seed:         42,
//	})
//	if err != nil {
//	    return err
//	}
//	rows, err := simulation.QuartileAverages(table, simulation.ColumnTestScoreQuartile)
package simulation
