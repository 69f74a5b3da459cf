// Package keys manages the local node's durable SSH key pair.
//
// The pair is generated once and reused on every run. The public key line
// carries a comment of the form "<user>@<node>" which doubles as the marker
// remote nodes are checked for before the key is appended again.
package keys

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/ssh"
)

const (
	// PrivateKeyFile is the private key file name inside the key directory
	PrivateKeyFile = "id_ed25519"
	// PublicKeyFile is the public key file name inside the key directory
	PublicKeyFile = "id_ed25519.pub"
)

// KeyPair is the local node's SSH identity
type KeyPair struct {
	Signer      ssh.Signer
	PublicKey   ssh.PublicKey
	Comment     string
	PrivatePath string
	PublicPath  string

	private crypto.PrivateKey
}

// Marker returns the string identifying this key in an authorized_keys file
func (k *KeyPair) Marker() string {
	return k.Comment
}

// AuthorizedKey returns the public key as a single authorized_keys line,
// comment included, terminated by a newline
func (k *KeyPair) AuthorizedKey() []byte {
	line := bytes.TrimSpace(ssh.MarshalAuthorizedKey(k.PublicKey))
	if k.Comment != "" {
		line = append(line, ' ')
		line = append(line, k.Comment...)
	}
	return append(line, '\n')
}

// Fingerprint returns the SHA256 fingerprint of the public key
func (k *KeyPair) Fingerprint() string {
	return ssh.FingerprintSHA256(k.PublicKey)
}

// Comment builds the "<user>@<node>" key comment
func Comment(user, nodeID string) string {
	return user + "@" + nodeID
}

// LoadOrGenerate loads the key pair from dir, generating it on first use.
// The boolean result reports whether a new pair was created.
func LoadOrGenerate(dir, comment string) (*KeyPair, bool, error) {
	privPath := filepath.Join(dir, PrivateKeyFile)
	pubPath := filepath.Join(dir, PublicKeyFile)

	if _, err := os.Stat(privPath); err == nil {
		kp, err := Load(dir, comment)
		return kp, false, err
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, false, fmt.Errorf("stat private key: %w", err)
	}

	kp, err := Generate(comment)
	if err != nil {
		return nil, false, err
	}
	kp.PrivatePath = privPath
	kp.PublicPath = pubPath

	if err := kp.write(); err != nil {
		return nil, false, err
	}

	log.Info().
		Str("path", privPath).
		Str("fingerprint", kp.Fingerprint()).
		Msg("Generated new SSH key pair")

	return kp, true, nil
}

// Generate creates a fresh ed25519 key pair held in memory
func Generate(comment string) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}

	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("convert public key: %w", err)
	}

	return &KeyPair{
		Signer:    signer,
		PublicKey: sshPub,
		Comment:   comment,
		private:   priv,
	}, nil
}

// Load reads an existing key pair from dir. A missing public key file is
// rebuilt from the private key.
func Load(dir, comment string) (*KeyPair, error) {
	privPath := filepath.Join(dir, PrivateKeyFile)
	pubPath := filepath.Join(dir, PublicKeyFile)

	privData, err := os.ReadFile(privPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(privData)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", privPath, err)
	}

	kp := &KeyPair{
		Signer:      signer,
		PublicKey:   signer.PublicKey(),
		Comment:     comment,
		PrivatePath: privPath,
		PublicPath:  pubPath,
	}

	pubData, err := os.ReadFile(pubPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", pubPath).Msg("Public key missing, rebuilding from private key")
		if err := os.WriteFile(pubPath, kp.AuthorizedKey(), 0644); err != nil {
			return nil, fmt.Errorf("write public key: %w", err)
		}
		return kp, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}

	pub, fileComment, _, _, err := ssh.ParseAuthorizedKey(pubData)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", pubPath, err)
	}
	if !bytes.Equal(pub.Marshal(), signer.PublicKey().Marshal()) {
		return nil, fmt.Errorf("public key %s does not match private key %s", pubPath, privPath)
	}

	// The marker must match the file that gets transferred, or the remote check
	// would never find it
	switch {
	case fileComment == comment:
	case fileComment == "":
		log.Warn().Str("path", pubPath).Msg("Public key has no comment, rewriting with node identity")
		if err := os.WriteFile(pubPath, kp.AuthorizedKey(), 0644); err != nil {
			return nil, fmt.Errorf("rewrite public key: %w", err)
		}
	default:
		log.Warn().
			Str("expected", comment).
			Str("found", fileComment).
			Msg("Public key comment differs from configured identity, using the one on disk")
		kp.Comment = fileComment
	}

	return kp, nil
}

func (k *KeyPair) write() error {
	if err := os.MkdirAll(filepath.Dir(k.PrivatePath), 0700); err != nil {
		return fmt.Errorf("create key dir: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(k.private, k.Comment)
	if err != nil {
		return fmt.Errorf("marshal private key: %w", err)
	}

	if err := os.WriteFile(k.PrivatePath, pem.EncodeToMemory(block), 0600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(k.PublicPath, k.AuthorizedKey(), 0644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}
	return nil
}
