package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoCoordinator means no node matched the coordinator rule
	ErrNoCoordinator = errors.New("no coordinator")
	// ErrAmbiguousTopology means more than one node matched the coordinator rule
	ErrAmbiguousTopology = errors.New("ambiguous topology")
	// ErrInvalidMembership means the inventory itself is malformed
	ErrInvalidMembership = errors.New("invalid membership")
	// ErrInvalidQuorumSize means the configured quorum target is below 1
	ErrInvalidQuorumSize = errors.New("invalid quorum size")
	// ErrTransferFailed means a trust target could not be reached or updated
	ErrTransferFailed = errors.New("transfer failed")
)

// TopologyError reports a failed classification. Kind is ErrNoCoordinator or
// ErrAmbiguousTopology; Matches lists every identifier the rule selected.
type TopologyError struct {
	Kind    error
	Rule    string
	Matches []string
	Total   int
}

func (e *TopologyError) Error() string {
	if len(e.Matches) == 0 {
		return fmt.Sprintf("%v: none of %d nodes matched coordinator rule %s", e.Kind, e.Total, e.Rule)
	}
	return fmt.Sprintf("%v: %d nodes matched coordinator rule %s: %s",
		e.Kind, len(e.Matches), e.Rule, strings.Join(e.Matches, ", "))
}

func (e *TopologyError) Unwrap() error {
	return e.Kind
}

// TransferError is the per-node failure recorded during trust establishment
type TransferError struct {
	NodeID  string
	Address string
	Err     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer to %s (%s) failed: %v", e.NodeID, e.Address, e.Err)
}

func (e *TransferError) Unwrap() []error {
	return []error{ErrTransferFailed, e.Err}
}
