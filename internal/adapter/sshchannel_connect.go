package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

// connect establishes an SSH connection, retrying transient dial failures.
// Authentication and host key rejections are not retried.
func (c *SSHChannel) connect(ctx context.Context, address string) (*ssh.Client, error) {
	addr := c.hostPort(address)

	config := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            c.auth,
		HostKeyCallback: c.hostKey,
		Timeout:         c.config.ConnectionTimeout,
	}

	var client *ssh.Client
	attempt := 0

	op := func() error {
		attempt++
		dialer := &net.Dialer{
			Timeout: c.config.ConnectionTimeout,
		}

		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			log.Debug().Err(err).Str("address", addr).Int("attempt", attempt).Msg("SSH dial failed")
			return fmt.Errorf("failed to dial: %w", err)
		}

		sshConn, chans, reqs, err := c.handshake(ctx, conn, addr, config)
		if err != nil {
			conn.Close()
			if ctx.Err() != nil || isPermanentHandshakeError(err) {
				return backoff.Permanent(fmt.Errorf("failed to establish SSH connection: %w", err))
			}
			return fmt.Errorf("failed to establish SSH connection: %w", err)
		}

		client = ssh.NewClient(sshConn, chans, reqs)
		return nil
	}

	if err := backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return client, nil
}

// handshake runs the SSH handshake on conn. It is bounded by ConnectionTimeout
// and by ctx; ssh.NewClientConn honours neither on its own.
func (c *SSHChannel) handshake(ctx context.Context, conn net.Conn, addr string, config *ssh.ClientConfig) (ssh.Conn, <-chan ssh.NewChannel, <-chan *ssh.Request, error) {
	if err := conn.SetDeadline(time.Now().Add(c.config.ConnectionTimeout)); err != nil {
		return nil, nil, nil, err
	}

	// Closing the connection unblocks a handshake stuck reading the banner
	stop := context.AfterFunc(ctx, func() { conn.Close() })

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	interrupted := !stop()
	if err == nil && interrupted {
		sshConn.Close()
		err = ctx.Err()
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, nil, nil, fmt.Errorf("handshake with %s interrupted: %w", addr, cerr)
		}
		return nil, nil, nil, err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, nil, nil, err
	}
	return sshConn, chans, reqs, nil
}

// isPermanentHandshakeError reports failures a retry cannot fix
func isPermanentHandshakeError(err error) bool {
	var keyErr *knownhosts.KeyError
	if errors.As(err, &keyErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "no supported methods remain")
}

// run executes cmd in a new session, bounded by CommandTimeout and ctx
func (c *SSHChannel) run(ctx context.Context, client *ssh.Client, cmd string, stdin io.Reader) (string, int, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", -1, fmt.Errorf("failed to create session: %w", err)
	}
	defer session.Close()

	if stdin != nil {
		session.Stdin = stdin
	}

	type outcome struct {
		output []byte
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		output, err := session.CombinedOutput(cmd)
		done <- outcome{output, err}
	}()

	timer := time.NewTimer(c.config.CommandTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.err != nil {
			var exitErr *ssh.ExitError
			if errors.As(res.err, &exitErr) {
				// Command ran but exited non-zero; the caller decides what that means
				return string(res.output), exitErr.ExitStatus(), nil
			}
			return string(res.output), -1, fmt.Errorf("command failed: %w", res.err)
		}
		return string(res.output), 0, nil
	case <-timer.C:
		session.Signal(ssh.SIGKILL)
		return "", -1, fmt.Errorf("command timeout after %s", c.config.CommandTimeout)
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return "", -1, ctx.Err()
	}
}

// buildAuth resolves the configured auth methods: agent, identity files, password.
// Identity files are read lazily at connect time.
func (c *SSHChannel) buildAuth() error {
	if c.config.UseAgent {
		if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
			conn, err := net.Dial("unix", sock)
			if err != nil {
				log.Warn().Err(err).Msg("SSH agent unavailable, skipping")
			} else {
				c.closers = append(c.closers, conn.Close)
				c.auth = append(c.auth, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
			}
		}
	}

	if len(c.config.IdentityFiles) > 0 {
		c.auth = append(c.auth, ssh.PublicKeysCallback(c.identitySigners))
	}

	if c.config.Password != "" {
		c.auth = append(c.auth, ssh.Password(c.config.Password))
	}

	if len(c.auth) == 0 {
		return fmt.Errorf("no SSH auth method configured: need an identity file, agent or password")
	}
	return nil
}

// identitySigners reads the identity files on every handshake, so a key
// generated after the channel was built is still offered. Missing files are skipped.
func (c *SSHChannel) identitySigners() ([]ssh.Signer, error) {
	var signers []ssh.Signer
	for _, path := range c.config.IdentityFiles {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("path", path).Msg("Identity file not found, skipping")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read identity %s: %w", path, err)
		}
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key %s: %w", path, err)
		}
		signers = append(signers, signer)
	}
	return signers, nil
}

// buildHostKeyCallback selects strict known_hosts checking or trust on first use
func (c *SSHChannel) buildHostKeyCallback() error {
	if c.config.InsecureIgnoreHostKey {
		c.hostKey = ssh.InsecureIgnoreHostKey()
		return nil
	}
	if c.config.KnownHostsFile == "" {
		return fmt.Errorf("known_hosts file required unless insecure_ignore_host_key is set")
	}

	callback, err := knownhosts.New(c.config.KnownHostsFile)
	if err != nil {
		return fmt.Errorf("load known_hosts %s: %w", c.config.KnownHostsFile, err)
	}
	c.hostKey = callback
	return nil
}
