// Package engine drives the phase-based deployment pipeline. Phases
// are a fixed set of implementations registered in a static ordered
// table; the engine sequences them, enforces dependency gating and
// idempotent re-runs, fans each phase out over a bounded worker pool,
// and records every resource outcome in the state store.
package engine
