package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

// SSHChannelConfig holds configuration for the SSH administrative channel
type SSHChannelConfig struct {
	// User is the remote account whose authorized_keys is managed
	User string
	// Port is the remote SSH port
	Port int
	// IdentityFiles are private keys offered for authentication
	IdentityFiles []string
	// Password is offered after keys; meant for first contact only
	Password string
	// UseAgent offers keys from $SSH_AUTH_SOCK
	UseAgent bool
	// KnownHostsFile verifies host keys; ignored when InsecureIgnoreHostKey is set
	KnownHostsFile string
	// InsecureIgnoreHostKey accepts any host key (trust on first use)
	InsecureIgnoreHostKey bool
	// ConnectionTimeout bounds dial plus handshake
	ConnectionTimeout time.Duration
	// CommandTimeout bounds a single remote command
	CommandTimeout time.Duration
	// MaxRetries bounds dial attempts after the first
	MaxRetries uint64
}

// DefaultSSHChannelConfig returns sensible defaults
func DefaultSSHChannelConfig() SSHChannelConfig {
	return SSHChannelConfig{
		User:              "hduser",
		Port:              22,
		ConnectionTimeout: 10 * time.Second,
		CommandTimeout:    30 * time.Second,
		MaxRetries:        2,
	}
}

// SSHChannel runs administrative operations on remote nodes over SSH
type SSHChannel struct {
	config  SSHChannelConfig
	auth    []ssh.AuthMethod
	hostKey ssh.HostKeyCallback
	closers []func() error
}

// NewSSHChannel creates a channel, resolving auth methods and the host key policy once
func NewSSHChannel(config SSHChannelConfig) (*SSHChannel, error) {
	defaults := DefaultSSHChannelConfig()
	if config.User == "" {
		config.User = defaults.User
	}
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.ConnectionTimeout == 0 {
		config.ConnectionTimeout = defaults.ConnectionTimeout
	}
	if config.CommandTimeout == 0 {
		config.CommandTimeout = defaults.CommandTimeout
	}

	c := &SSHChannel{config: config}

	if err := c.buildAuth(); err != nil {
		return nil, err
	}
	if err := c.buildHostKeyCallback(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("user", config.User).
		Int("port", config.Port).
		Int("auth_methods", len(c.auth)).
		Bool("insecure_host_key", config.InsecureIgnoreHostKey).
		Msg("SSH channel ready")

	return c, nil
}

// Close releases the agent connection, if any
func (c *SSHChannel) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

// TransferFile copies localPath to remotePath by streaming it into a remote cat.
// The remote file is created with mode 0600.
func (c *SSHChannel) TransferFile(ctx context.Context, address, localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", localPath, err)
	}

	client, err := c.connect(ctx, address)
	if err != nil {
		return err
	}
	defer client.Close()

	cmd := fmt.Sprintf("umask 077 && mkdir -p %s && cat > %s",
		shellQuote(remoteDir(remotePath)), shellQuote(remotePath))

	output, status, err := c.run(ctx, client, cmd, bytes.NewReader(data))
	if err != nil {
		return err
	}
	if status != 0 {
		return fmt.Errorf("write %s: exit status %d: %s", remotePath, status, strings.TrimSpace(output))
	}
	return nil
}

// ExecuteRemoteCommand runs command on address and returns its combined output
// and exit status. A non-zero exit is not an error.
func (c *SSHChannel) ExecuteRemoteCommand(ctx context.Context, address, command string) (string, int, error) {
	client, err := c.connect(ctx, address)
	if err != nil {
		return "", -1, err
	}
	defer client.Close()

	return c.run(ctx, client, command, nil)
}

// hostPort joins address with the configured port unless it already has one
func (c *SSHChannel) hostPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address
	}
	return net.JoinHostPort(address, strconv.Itoa(c.config.Port))
}

func remoteDir(p string) string {
	if i := strings.LastIndex(p, "/"); i > 0 {
		return p[:i]
	}
	return "."
}

// shellQuote wraps s in single quotes for a POSIX shell
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// newBackOff bounds retries by count and by ctx
func (c *SSHChannel) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, c.config.MaxRetries), ctx)
}
