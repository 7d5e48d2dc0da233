// Package planner derives the adaptive quality ladder: per-tier encode
// profiles from explicit lookup tables keyed by (regime, mode, tier),
// aspect-preserving even scaling, audio profiles, deterministic output
// names, and the disk-space estimate used by pre-flight.
//
// Everything here is pure; the encode engine and scheduler consume the
// returned values by copy.
package planner
