// Package analysis interprets a trained hybrid model.
//
//   - [EstimateDamping]: fits N(x, v) ≈ c·v + b along a trajectory, recovering
//     the damping coefficient the correction has learned
//   - [SummarizeLoss]: first, last, best and mean loss of a training history
//   - [SummarizeSpread]: mean and spread of one quantity across seeds
//
// A correction that has learned linear viscous damping reports a slope close
// to the coefficient used to generate the data and an R² close to one:
//
//	est, err := analysis.EstimateDamping(mlp, data.TrueX, data.TrueV)
//	fmt.Printf("c ≈ %.3f (R²=%.3f)\n", est.Damping, est.RSquared)
package analysis
