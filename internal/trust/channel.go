package trust

import (
	"context"

	"clustercfg/internal/domain"
)

// Channel is the authenticated administrative channel to a remote node
type Channel interface {
	// TransferFile copies localPath to remotePath on the node at address
	TransferFile(ctx context.Context, address, localPath, remotePath string) error
	// ExecuteRemoteCommand runs command on the node at address and returns its
	// combined output and exit status
	ExecuteRemoteCommand(ctx context.Context, address, command string) (string, int, error)
}

// Prober reports which addresses accept administrative connections.
// Addresses absent from the returned map are treated as reachable.
type Prober interface {
	Reachable(ctx context.Context, addresses []string) (map[string]bool, error)
}

// EventPublisher receives per-node outcomes as they complete.
// It is called from multiple goroutines.
type EventPublisher interface {
	PublishTrustOutcome(outcome domain.NodeTrust)
}
