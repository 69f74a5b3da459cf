// Package adapter connects the topology and trust logic to real hosts.
//
// # SSH Channel
//
// SSHChannel implements trust.Channel over golang.org/x/crypto/ssh. It offers
// agent keys, identity files and a first-contact password, verifies host keys
// against a known_hosts file unless told otherwise, and retries transient dial
// failures with exponential backoff. Authentication and host key rejections
// are never retried.
//
// # Reachability
//
// NmapProbe implements trust.Prober by scanning the SSH port of every member
// in one nmap run, so that dead nodes fail fast instead of waiting out a
// connection timeout each.
//
// # Verification
//
// KeyVerifier logs into every member with the coordinator's key and nothing
// else, proving the trust pass worked, and gathers a few facts (hostname, OS,
// Java) while connected.
package adapter
