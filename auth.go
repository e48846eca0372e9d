package pharos

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/ssh"
)

// EnvPrivateKey names the environment variable pointing at the private
// key used to answer authentication challenges.
const EnvPrivateKey = "PHAROS_PRIVATE_KEY"

// ChallengeSigner answers a server authentication challenge. Sign returns
// the public key in OpenSSH one-line format and the base64 raw signature
// over the challenge bytes.
type ChallengeSigner interface {
	Sign(challenge string) (publicKey, signature string, err error)
}

// SSHKeySigner signs challenges with a local OpenSSH private key. The key
// is loaded once, on the first challenge.
//
// The zero value is usable: it reads the path from the PHAROS_PRIVATE_KEY
// environment variable and falls back to ~/.ssh/id_ed25519.
type SSHKeySigner struct {
	// Path is the private key location. Empty means PHAROS_PRIVATE_KEY,
	// then ~/.ssh/id_ed25519.
	Path string

	once   sync.Once
	signer ssh.Signer
	err    error
}

var _ ChallengeSigner = (*SSHKeySigner)(nil)

// Sign signs the challenge string and returns the OpenSSH public key line
// and the base64-encoded signature blob the server verifies.
func (s *SSHKeySigner) Sign(challenge string) (string, string, error) {
	s.once.Do(s.load)
	if s.err != nil {
		return "", "", s.err
	}

	sig, err := s.signer.Sign(rand.Reader, []byte(challenge))
	if err != nil {
		return "", "", fmt.Errorf("signing challenge: %w", err)
	}

	publicKey := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(s.signer.PublicKey())))
	signature := base64.StdEncoding.EncodeToString(sig.Blob)
	return publicKey, signature, nil
}

func (s *SSHKeySigner) load() {
	path := s.Path
	if path == "" {
		path = os.Getenv(EnvPrivateKey)
	}
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		path = filepath.Join(home, ".ssh", "id_ed25519")
	}

	keyBytes, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			s.err = fmt.Errorf("private key not found at %s, set %s to use another", path, EnvPrivateKey)
			return
		}
		s.err = fmt.Errorf("reading private key %s: %w", path, err)
		return
	}

	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		s.err = fmt.Errorf("parsing private key %s: %w", path, err)
		return
	}
	s.signer = signer
}
