package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"clustercfg/internal/domain"
	"clustercfg/internal/keys"
)

// CheckPublisher receives per-node verification results as they complete.
// It is called from multiple goroutines.
type CheckPublisher interface {
	PublishCheck(check domain.NodeCheck)
}

// KeyVerifier confirms that every node accepts a login with the coordinator's
// key and nothing else, and gathers a few facts while connected
type KeyVerifier struct {
	base          SSHChannelConfig
	maxConcurrent int
	nodeTimeout   time.Duration
	commands      []FactCommand
	publisher     CheckPublisher
}

// NewKeyVerifier creates a verifier. base supplies user, port, host key policy
// and timeouts; its auth settings are replaced by the key under test.
func NewKeyVerifier(base SSHChannelConfig, maxConcurrent int) *KeyVerifier {
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &KeyVerifier{
		base:          base,
		maxConcurrent: maxConcurrent,
		nodeTimeout:   time.Minute,
		commands:      DefaultFactCommands,
	}
}

// SetNodeTimeout bounds login plus fact gathering on a single node
func (v *KeyVerifier) SetNodeTimeout(d time.Duration) {
	if d > 0 {
		v.nodeTimeout = d
	}
}

// SetFactCommands replaces the commands run on each node
func (v *KeyVerifier) SetFactCommands(commands []FactCommand) {
	v.commands = commands
}

// SetEventPublisher sets the receiver for per-node results
func (v *KeyVerifier) SetEventPublisher(pub CheckPublisher) {
	v.publisher = pub
}

// Verify logs into every node of snapshot using only kp. Results are in
// ascending address order. A node that refuses the key is a failed check, not
// an error; the error return is reserved for a key that cannot be used at all.
func (v *KeyVerifier) Verify(ctx context.Context, snapshot *domain.MembershipSnapshot, kp *keys.KeyPair) ([]domain.NodeCheck, error) {
	if kp == nil || kp.PrivatePath == "" {
		return nil, fmt.Errorf("local key pair is not loaded")
	}

	config := v.base
	config.IdentityFiles = []string{kp.PrivatePath}
	config.UseAgent = false
	config.Password = ""

	channel, err := NewSSHChannel(config)
	if err != nil {
		return nil, err
	}
	defer channel.Close()

	nodes := snapshot.All()
	checks := make([]domain.NodeCheck, len(nodes))

	var g errgroup.Group
	g.SetLimit(v.maxConcurrent)

	for i, node := range nodes {
		g.Go(func() error {
			checks[i] = v.checkNode(ctx, channel, node)
			if v.publisher != nil {
				v.publisher.PublishCheck(checks[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := len(domain.CheckFailures(checks))
	log.Info().
		Int("verified", len(checks)-failed).
		Int("failed", failed).
		Msg("Verify: pass complete")

	return checks, nil
}

func (v *KeyVerifier) checkNode(ctx context.Context, channel *SSHChannel, node domain.NodeRecord) (check domain.NodeCheck) {
	check = domain.NodeCheck{NodeID: node.ID, Address: node.Address}

	start := time.Now()
	defer func() { check.Duration = time.Since(start) }()

	if err := ctx.Err(); err != nil {
		check.Err = err
		return check
	}

	ctx, cancel := context.WithTimeout(ctx, v.nodeTimeout)
	defer cancel()

	client, err := channel.connect(ctx, node.Address)
	if err != nil {
		check.Err = err
		log.Warn().Err(err).Str("node", node.ID).Msg("Verify: key login refused")
		return check
	}
	defer client.Close()

	check.OK = true
	check.Facts = make(map[string]string)

	for _, fc := range v.commands {
		output, status, err := channel.run(ctx, client, fc.Command, nil)
		if err != nil || status != 0 {
			log.Debug().Err(err).Int("status", status).Str("node", node.ID).Str("fact", fc.Name).Msg("Fact command failed")
			continue
		}
		facts, err := fc.Parser(output)
		if err != nil {
			log.Debug().Err(err).Str("node", node.ID).Str("fact", fc.Name).Msg("Fact parse failed")
			continue
		}
		for k, val := range facts {
			check.Facts[k] = val
		}
	}

	// ZooKeeper and the slaves file address members by identifier
	if reported := shortName(check.Hostname()); reported != "" && !strings.EqualFold(reported, shortName(node.ID)) {
		log.Warn().
			Str("node", node.ID).
			Str("hostname", check.Hostname()).
			Msg("Verify: node reports a hostname different from its inventory identifier")
	}

	return check
}

func shortName(host string) string {
	if i := strings.Index(host, "."); i > 0 {
		return host[:i]
	}
	return host
}
