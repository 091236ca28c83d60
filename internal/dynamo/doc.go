// Package dynamo provides core primitives for dynamical systems.
//
// The package defines the fundamental interfaces and types shared by the
// solvers, the reference physics and the hybrid model:
//
//   - [State]: vector representing system state
//   - [Grid]: strictly increasing sample times
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [SimulationError]: step/time context around a failure
//
// # Example
//
//	grid, _ := dynamo.NewUniformGrid(0, 10, 200)
//	sys, _ := physics.NewSpringMass(1, 5, 0.7)
//	states, _ := integrators.Solve(ctx, sys, integrators.NewRK45(), dynamo.State{1, 0}, grid, dynamo.DefaultSolveConfig())
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
package dynamo
