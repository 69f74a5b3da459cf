package domain

import (
	"errors"
	"fmt"
	"time"
)

// TrustState is the position of one target node in the trust state machine
type TrustState string

const (
	TrustUnvisited      TrustState = "unvisited"
	TrustKeyTransferred TrustState = "key_transferred"
	TrustAlready        TrustState = "already_trusted"
	TrustEstablished    TrustState = "trust_established"
	TrustFailed         TrustState = "transfer_failed"
)

// AllTrustStates lists every state, terminal states last
var AllTrustStates = []TrustState{
	TrustUnvisited,
	TrustKeyTransferred,
	TrustAlready,
	TrustEstablished,
	TrustFailed,
}

var trustTransitions = map[TrustState][]TrustState{
	TrustUnvisited:      {TrustKeyTransferred, TrustFailed},
	TrustKeyTransferred: {TrustAlready, TrustEstablished, TrustFailed},
}

// Terminal reports whether no further transition is possible
func (s TrustState) Terminal() bool {
	return s == TrustAlready || s == TrustEstablished || s == TrustFailed
}

// CanTransition reports whether moving from s to next is allowed
func (s TrustState) CanTransition(next TrustState) bool {
	for _, allowed := range trustTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// TrustEdge means Truster's public key is present in Trusted's authorized credentials
type TrustEdge struct {
	Truster string `json:"truster" yaml:"truster"`
	Trusted string `json:"trusted" yaml:"trusted"`
}

func (e TrustEdge) String() string {
	return e.Truster + " -> " + e.Trusted
}

// NodeTrust tracks one target node through a trust-establishment pass
type NodeTrust struct {
	NodeID   string        `json:"node_id" yaml:"node_id"`
	Address  string        `json:"address" yaml:"address"`
	State    TrustState    `json:"state" yaml:"state"`
	Err      error         `json:"-" yaml:"-"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// NewNodeTrust starts tracking node in the Unvisited state
func NewNodeTrust(node NodeRecord) *NodeTrust {
	return &NodeTrust{
		NodeID:  node.ID,
		Address: node.Address,
		State:   TrustUnvisited,
	}
}

// Advance moves the target to next, rejecting transitions the machine does not allow
func (n *NodeTrust) Advance(next TrustState) error {
	if !n.State.CanTransition(next) {
		return fmt.Errorf("invalid trust transition for %s: %s -> %s", n.NodeID, n.State, next)
	}
	n.State = next
	return nil
}

// Fail moves the target to TransferFailed and records the cause
func (n *NodeTrust) Fail(err error) {
	n.State = TrustFailed
	n.Err = &TransferError{NodeID: n.NodeID, Address: n.Address, Err: err}
}

// ErrorMessage returns the failure cause, or "" if none
func (n *NodeTrust) ErrorMessage() string {
	if n.Err == nil {
		return ""
	}
	return n.Err.Error()
}

// TrustResult aggregates one trust-establishment pass.
// Nodes are kept in ascending address order.
type TrustResult struct {
	Truster string      `json:"truster" yaml:"truster"`
	Skipped bool        `json:"skipped" yaml:"skipped"`
	Nodes   []NodeTrust `json:"nodes" yaml:"nodes"`
}

// Created returns the edges established during this pass
func (r *TrustResult) Created() []TrustEdge {
	var edges []TrustEdge
	for _, n := range r.Nodes {
		if n.State == TrustEstablished {
			edges = append(edges, TrustEdge{Truster: r.Truster, Trusted: n.NodeID})
		}
	}
	return edges
}

// Failures returns the targets that ended in TransferFailed
func (r *TrustResult) Failures() []NodeTrust {
	var failed []NodeTrust
	for _, n := range r.Nodes {
		if n.State == TrustFailed {
			failed = append(failed, n)
		}
	}
	return failed
}

// Counts tallies targets per state
func (r *TrustResult) Counts() map[TrustState]int {
	counts := make(map[TrustState]int)
	for _, n := range r.Nodes {
		counts[n.State]++
	}
	return counts
}

// Err joins every per-node failure, or returns nil if all targets succeeded
func (r *TrustResult) Err() error {
	var errs []error
	for _, n := range r.Failures() {
		if n.Err != nil {
			errs = append(errs, n.Err)
		} else {
			errs = append(errs, &TransferError{NodeID: n.NodeID, Address: n.Address, Err: ErrTransferFailed})
		}
	}
	return errors.Join(errs...)
}
