// Package viz renders training runs for the terminal.
//
//   - [LossChart]: asciigraph plot of the loss curve, optionally on a log scale
//   - [PhasePortrait]: braille plot of observed and predicted (x, v) paths
//   - [Sparkline]: one-line loss trend for run listings
//   - [BoxWithTitle]: lipgloss panel for summaries
package viz
