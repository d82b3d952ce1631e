// Package scheduler draws the daily on/off windows of schedule-governed
// appliances. Each appliance follows one strategy: a deadline-constrained run
// of fixed length, a run that starts when another appliance finishes, or a
// flexible run with a random start and duration. Randomness comes from an
// injected source so plans are reproducible for a given seed.
package scheduler
