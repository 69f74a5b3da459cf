package domain

import (
	"errors"
	"time"
)

// NodeCheck is the result of logging into one node with the coordinator key alone
type NodeCheck struct {
	NodeID   string            `json:"node_id" yaml:"node_id"`
	Address  string            `json:"address" yaml:"address"`
	OK       bool              `json:"ok" yaml:"ok"`
	Facts    map[string]string `json:"facts,omitempty" yaml:"facts,omitempty"`
	Err      error             `json:"-" yaml:"-"`
	Duration time.Duration     `json:"duration" yaml:"duration"`
}

// Hostname returns the hostname the node reported, if gathered
func (c NodeCheck) Hostname() string {
	return c.Facts["hostname"]
}

// ErrorMessage returns the failure cause, or "" if none
func (c NodeCheck) ErrorMessage() string {
	if c.Err == nil {
		return ""
	}
	return c.Err.Error()
}

// CheckFailures returns the checks that did not pass
func CheckFailures(checks []NodeCheck) []NodeCheck {
	var failed []NodeCheck
	for _, c := range checks {
		if !c.OK {
			failed = append(failed, c)
		}
	}
	return failed
}

// CheckErr joins every failed check's error
func CheckErr(checks []NodeCheck) error {
	var errs []error
	for _, c := range CheckFailures(checks) {
		errs = append(errs, &TransferError{NodeID: c.NodeID, Address: c.Address, Err: c.Err})
	}
	return errors.Join(errs...)
}
