// Package service orchestrates a clustercfg run.
//
// RunService reads the membership, classifies it, derives the replication
// factor and quorum, establishes trust when the local node is the
// coordinator, renders configuration artifacts and records the outcome.
// Progress is published on an EventBus.
//
// A classification failure aborts the run before any remote action. Trust
// failures on individual nodes never stop rendering; they mark the run as
// partial.
package service
