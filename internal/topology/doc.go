// Package topology derives the cluster layout from a membership inventory.
//
// Classify partitions the raw inventory into one coordinator and its workers
// using a pluggable RoleClassifier. PlanReplication and SelectQuorum then derive
// the storage replication factor and the coordination-service quorum from the
// resulting snapshot. Both are pure functions of the snapshot; Plan runs them
// concurrently.
package topology
