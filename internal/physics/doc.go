// Package physics provides the reference models used to synthesize observations.
//
// Each model implements the [dynamo.System] interface, defining the
// differential equations governing the system's evolution:
//
//   - [SpringMass]: damped harmonic oscillator with known mass, stiffness and damping
//
// Models also implement [dynamo.Hamiltonian] for energy calculation, which is
// handy for checking that an undamped run keeps its energy:
//
//	dyn, _ := physics.NewSpringMass(1, 5, 0)
//	energy := dyn.Energy(state)
package physics
