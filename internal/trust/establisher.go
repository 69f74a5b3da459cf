// Package trust establishes coordinator-initiated SSH trust across the cluster.
//
// The coordinator pushes its public key to every node in the membership,
// itself included, and appends it to the node's authorized_keys only when a
// line carrying the coordinator's marker is not already present. Workers do
// nothing. Per-node failures are collected rather than aborting the pass.
package trust

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"clustercfg/internal/domain"
	"clustercfg/internal/keys"
)

// ErrUnreachable is recorded for nodes the reachability probe found closed
var ErrUnreachable = errors.New("administrative port not reachable")

// Config holds configuration for the trust establisher
type Config struct {
	// MaxConcurrent bounds the number of nodes processed in parallel
	MaxConcurrent int
	// NodeTimeout bounds transfer plus authorization for a single node
	NodeTimeout time.Duration
	// StagingDir is the remote directory the public key is copied into
	StagingDir string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MaxConcurrent: 5,
		NodeTimeout:   30 * time.Second,
		StagingDir:    "/tmp",
	}
}

// Establisher pushes the local key pair to every member of a snapshot
type Establisher struct {
	channel   Channel
	prober    Prober
	publisher EventPublisher
	config    Config
}

// NewEstablisher creates an establisher that talks to nodes over channel
func NewEstablisher(channel Channel, config Config) *Establisher {
	defaults := DefaultConfig()
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaults.MaxConcurrent
	}
	if config.NodeTimeout <= 0 {
		config.NodeTimeout = defaults.NodeTimeout
	}
	if config.StagingDir == "" {
		config.StagingDir = defaults.StagingDir
	}

	return &Establisher{
		channel: channel,
		config:  config,
	}
}

// SetProber enables a reachability check before any node is dialed
func (e *Establisher) SetProber(p Prober) {
	e.prober = p
}

// SetEventPublisher sets the receiver for per-node outcomes
func (e *Establisher) SetEventPublisher(pub EventPublisher) {
	e.publisher = pub
}

// EstablishTrust makes every node in snapshot trust the local key pair.
//
// It only acts when localID is the snapshot's coordinator; otherwise it returns
// a skipped, empty result. Nodes are visited in ascending address order, up to
// MaxConcurrent at a time. A failure on one node never stops the others; the
// returned result carries every outcome and TrustResult.Err joins the failures.
// Once a node has started it runs to completion or its own timeout even if ctx
// is cancelled, so no remote store is left half written; nodes not yet started
// when ctx is cancelled are reported as TransferFailed.
func (e *Establisher) EstablishTrust(ctx context.Context, snapshot *domain.MembershipSnapshot, localID string, kp *keys.KeyPair) (*domain.TrustResult, error) {
	if kp == nil || kp.PublicPath == "" {
		return nil, fmt.Errorf("local key pair is not loaded")
	}
	if kp.Marker() == "" {
		return nil, fmt.Errorf("local key pair has no identity marker")
	}

	result := &domain.TrustResult{Truster: localID}

	if !snapshot.IsCoordinator(localID) {
		log.Info().
			Str("local_id", localID).
			Str("coordinator", snapshot.Coordinator().ID).
			Msg("Trust: not the coordinator, nothing to do")
		result.Skipped = true
		return result, nil
	}

	nodes := snapshot.All()
	reachable := e.probe(ctx, nodes)

	log.Info().
		Int("nodes", len(nodes)).
		Int("max_concurrent", e.config.MaxConcurrent).
		Str("fingerprint", kp.Fingerprint()).
		Msg("Trust: establishing coordinator trust")

	// Each worker writes only its own slot, so outcomes need no further locking
	outcomes := make([]domain.NodeTrust, len(nodes))

	var g errgroup.Group
	g.SetLimit(e.config.MaxConcurrent)

	for i, node := range nodes {
		nt := domain.NewNodeTrust(node)

		if open, ok := reachable[node.Address]; ok && !open {
			nt.Fail(ErrUnreachable)
			outcomes[i] = *nt
			e.publish(*nt)
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				nt.Fail(fmt.Errorf("run cancelled before start: %w", err))
			} else {
				e.establishNode(ctx, nt, kp)
			}
			outcomes[i] = *nt
			e.publish(*nt)
			return nil
		})
	}
	_ = g.Wait()

	result.Nodes = outcomes

	counts := result.Counts()
	log.Info().
		Int("established", counts[domain.TrustEstablished]).
		Int("already_trusted", counts[domain.TrustAlready]).
		Int("failed", counts[domain.TrustFailed]).
		Msg("Trust: pass complete")

	return result, nil
}

// establishNode drives one target through the trust state machine
func (e *Establisher) establishNode(ctx context.Context, nt *domain.NodeTrust, kp *keys.KeyPair) {
	start := time.Now()
	defer func() { nt.Duration = time.Since(start) }()

	// Detach from run cancellation; only the per-node timeout may interrupt
	nodeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.config.NodeTimeout)
	defer cancel()

	staged := path.Join(e.config.StagingDir, "clustercfg-"+sanitize(nt.NodeID)+"-"+sanitize(kp.Marker())+".pub")

	if err := e.channel.TransferFile(nodeCtx, nt.Address, kp.PublicPath, staged); err != nil {
		log.Warn().Err(err).Str("node", nt.NodeID).Str("address", nt.Address).Msg("Trust: key transfer failed")
		nt.Fail(fmt.Errorf("transfer public key: %w", err))
		return
	}
	if err := nt.Advance(domain.TrustKeyTransferred); err != nil {
		nt.Fail(err)
		return
	}

	output, status, err := e.channel.ExecuteRemoteCommand(nodeCtx, nt.Address, authorizeScript(staged, kp.Marker()))
	if err != nil {
		log.Warn().Err(err).Str("node", nt.NodeID).Msg("Trust: authorize command failed")
		nt.Fail(fmt.Errorf("authorize key: %w", err))
		return
	}
	if status != 0 {
		nt.Fail(fmt.Errorf("authorize key: exit status %d: %s", status, strings.TrimSpace(output)))
		return
	}

	next, err := parseOutcome(output)
	if err != nil {
		nt.Fail(err)
		return
	}
	if err := nt.Advance(next); err != nil {
		nt.Fail(err)
		return
	}

	log.Debug().
		Str("node", nt.NodeID).
		Str("address", nt.Address).
		Str("state", string(nt.State)).
		Msg("Trust: node done")
}

// parseOutcome maps the authorize script's final line to a terminal state
func parseOutcome(output string) (domain.TrustState, error) {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	last := strings.TrimSpace(lines[len(lines)-1])

	switch last {
	case outputAlreadyTrusted:
		return domain.TrustAlready, nil
	case outputTrustEstablished:
		return domain.TrustEstablished, nil
	default:
		return "", fmt.Errorf("unexpected authorize output: %q", strings.TrimSpace(output))
	}
}

// probe runs the optional reachability check; a failing probe is logged and ignored
func (e *Establisher) probe(ctx context.Context, nodes []domain.NodeRecord) map[string]bool {
	if e.prober == nil {
		return nil
	}

	addrs := make([]string, len(nodes))
	for i, n := range nodes {
		addrs[i] = n.Address
	}

	reachable, err := e.prober.Reachable(ctx, addrs)
	if err != nil {
		log.Warn().Err(err).Msg("Trust: reachability probe failed, dialing every node")
		return nil
	}
	return reachable
}

func (e *Establisher) publish(nt domain.NodeTrust) {
	if e.publisher != nil {
		e.publisher.PublishTrustOutcome(nt)
	}
}

// sanitize keeps a value safe for use inside a remote file name
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
