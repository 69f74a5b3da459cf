// Package domain defines the core types for cluster topology derivation.
//
// This package contains the value objects that flow through a configuration run:
// the node records read from the membership inventory, the classified membership
// snapshot, the derived replication plan and quorum set, and the trust-establishment
// state machine.
//
// # Core Types
//
// NodeRecord is one inventory entry (identifier, network address, groups). It is
// immutable for the duration of a run and re-read from the inventory on every run.
//
// MembershipSnapshot is the classified partition of the inventory into exactly one
// coordinator and zero or more workers, always exposed in ascending address order.
//
// ReplicationPlan and QuorumSet are the derived values handed to the config
// materializer.
//
// # Trust
//
// TrustEdge records that the truster's public key is present in the trusted node's
// authorized credentials store. NodeTrust tracks a single target through the
// Unvisited -> KeyTransferred -> {AlreadyTrusted | TrustEstablished} | TransferFailed
// state machine, and TrustResult aggregates all targets of one pass.
//
// NodeCheck is the outcome of logging into a node with the coordinator key alone
// after a trust pass.
//
// RunRecord is the ledger entry for one configuration run.
//
// # Design Principles
//
// - Immutable value objects where possible
// - No database or external dependencies
// - Errors carry enough detail for an operator to fix the inventory
package domain
