package crypto

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// Identity is a long-lived signing identity: either a locally-held
// Ed25519 private key or a remote signer reached over an agent socket,
// which never reveals key material. Grounded on
// other_examples/0cba1a90_massiveart-go.crypto__ssh-client.go's pattern
// of loading client identity material ahead of a handshake.
type Identity interface {
	Public() ed25519.PublicKey
	Sign(message []byte) ([]byte, error)
	// Zero wipes any local private key material; Sign fails afterwards.
	// Agent-backed identities never held the key locally, so for them
	// Zero closes the agent connection.
	Zero()
}

type localIdentity struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

func (l *localIdentity) Public() ed25519.PublicKey { return l.public }

func (l *localIdentity) Sign(message []byte) ([]byte, error) {
	if l.private == nil {
		return nil, fmt.Errorf("crypto: identity key material has been zeroed")
	}
	return ed25519.Sign(l.private, message), nil
}

func (l *localIdentity) Zero() {
	for i := range l.private {
		l.private[i] = 0
	}
	l.private = nil
}

// GenerateIdentity creates a fresh Ed25519 identity keypair.
func GenerateIdentity() (Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("crypto: generating identity key: %w", err)
	}
	return &localIdentity{public: pub, private: priv}, nil
}

type agentIdentity struct {
	conn   net.Conn
	client agent.Agent
	key    *agent.Key
}

func (a *agentIdentity) Public() ed25519.PublicKey {
	// agent.Key.Blob is the wire-format public key; for ssh-ed25519 keys
	// the last 32 bytes are the raw Ed25519 public key.
	if len(a.key.Blob) < ed25519.PublicKeySize {
		return nil
	}
	return ed25519.PublicKey(a.key.Blob[len(a.key.Blob)-ed25519.PublicKeySize:])
}

func (a *agentIdentity) Sign(message []byte) ([]byte, error) {
	sshKey, err := ssh.ParsePublicKey(a.key.Blob)
	if err != nil {
		return nil, fmt.Errorf("crypto: parsing agent key: %w", err)
	}
	sig, err := a.client.Sign(sshKey, message)
	if err != nil {
		return nil, fmt.Errorf("crypto: agent signing failed: %w", err)
	}
	return sig.Blob, nil
}

func (a *agentIdentity) Zero() {
	_ = a.conn.Close()
}

// LoadIdentity resolves an identity key source URI into a signing
// Identity. Supported sources for local signing identity: a plain
// filesystem path to an OpenSSH-format Ed25519 private key (optionally
// passphrase-protected), and "agent:<socket-path>" for an external
// agent (ssh-agent or gpg-agent's ssh support). The "gpg:", "github:",
// and "gitlab:" sources are for peer/server key verification only and
// are handled by FetchVerificationKeys, not here.
func LoadIdentity(uri string, passphrase []byte) (Identity, error) {
	switch {
	case strings.HasPrefix(uri, "agent:"):
		return loadAgentIdentity(strings.TrimPrefix(uri, "agent:"))
	case strings.HasPrefix(uri, "gpg:"), strings.HasPrefix(uri, "github:"), strings.HasPrefix(uri, "gitlab:"):
		return nil, fmt.Errorf("%w: %q is a verification-only source, use FetchVerificationKeys", ErrUnknownIdentitySource, uri)
	default:
		return loadFileIdentity(uri, passphrase)
	}
}

// identityFileMagic tags a file saved by SaveIdentity: this module's own
// Argon2id-at-rest format, distinct from an OpenSSH private key PEM
// block, which loadFileIdentity also still accepts for interoperability
// with keys generated by ssh-keygen.
var identityFileMagic = []byte("ACIPIDK1")

// SaveIdentity writes identity's private key to path, encrypted at rest
// under an Argon2id-derived key when passphrase is non-empty. An empty
// passphrase writes an unencrypted OpenSSH private key block, the same
// format loadFileIdentity already reads via ssh.ParsePrivateKey, so a
// caller that never sets a passphrase still gets a key file usable by
// ssh-keygen-compatible tooling.
func SaveIdentity(path string, identity Identity, passphrase []byte) error {
	li, ok := identity.(*localIdentity)
	if !ok {
		return fmt.Errorf("crypto: SaveIdentity requires a local identity, not an agent-backed one")
	}
	if len(passphrase) == 0 {
		block, err := ssh.MarshalPrivateKey(li.private, "")
		if err != nil {
			return fmt.Errorf("crypto: marshaling identity key: %w", err)
		}
		return os.WriteFile(path, pem.EncodeToMemory(block), 0o600)
	}
	salt, err := newSalt()
	if err != nil {
		return fmt.Errorf("crypto: generating salt: %w", err)
	}
	key := deriveKeyArgon2id(passphrase, salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return fmt.Errorf("crypto: building AEAD: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("crypto: generating nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, li.private, nil)

	out := make([]byte, 0, len(identityFileMagic)+len(salt)+len(nonce)+len(sealed))
	out = append(out, identityFileMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return os.WriteFile(path, out, 0o600)
}

func loadArgon2idIdentity(path string, raw, passphrase []byte) (Identity, error) {
	if len(passphrase) == 0 {
		return nil, fmt.Errorf("crypto: identity key %s is encrypted at rest and requires a passphrase", path)
	}
	body := raw[len(identityFileMagic):]
	if len(body) < saltLen+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("crypto: identity key %s is truncated", path)
	}
	salt := body[:saltLen]
	nonce := body[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	ciphertext := body[saltLen+chacha20poly1305.NonceSizeX:]

	key := deriveKeyArgon2id(passphrase, salt)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: building AEAD: %w", err)
	}
	priv, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("crypto: decrypting identity key %s: wrong passphrase or corrupt file", path)
	}
	privKey := ed25519.PrivateKey(priv)
	pub, ok := privKey.Public().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: identity key %s did not decrypt to a valid ed25519 key", path)
	}
	return &localIdentity{public: pub, private: privKey}, nil
}

func loadFileIdentity(path string, passphrase []byte) (Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("crypto: reading identity key file %s: %w", path, err)
	}
	if bytes.HasPrefix(raw, identityFileMagic) {
		return loadArgon2idIdentity(path, raw, passphrase)
	}
	var signer ssh.Signer
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(raw, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(raw)
	}
	if err != nil {
		return nil, fmt.Errorf("crypto: parsing identity key %s: %w", path, err)
	}
	cryptoSigner, ok := signer.(ssh.AlgorithmSigner)
	_ = cryptoSigner
	pub := signer.PublicKey()
	if pub.Type() != ssh.KeyAlgoED25519 {
		return nil, fmt.Errorf("crypto: identity key %s is %s, only ed25519 identities are supported", path, pub.Type())
	}
	// ssh.CryptoPublicKey exposes the underlying crypto.PublicKey.
	cpk, ok := pub.(ssh.CryptoPublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: identity key %s does not expose its raw public key", path)
	}
	edPub, ok := cpk.CryptoPublicKey().(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("crypto: identity key %s is not an ed25519 key", path)
	}
	return &sshSignerIdentity{public: edPub, signer: signer}, nil
}

// sshSignerIdentity wraps an ssh.Signer parsed from a local file. The
// underlying private scalar is held by the x/crypto/ssh package rather
// than exposed to us directly, so Zero() is a best-effort no-op;
// identity key files are short-lived process-local material anyway and
// the file itself remains the durable secret.
type sshSignerIdentity struct {
	public ed25519.PublicKey
	signer ssh.Signer
}

func (s *sshSignerIdentity) Public() ed25519.PublicKey { return s.public }

func (s *sshSignerIdentity) Sign(message []byte) ([]byte, error) {
	sig, err := s.signer.Sign(rand.Reader, message)
	if err != nil {
		return nil, err
	}
	return sig.Blob, nil
}

func (s *sshSignerIdentity) Zero() {}

func loadAgentIdentity(socketPath string) (Identity, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return nil, fmt.Errorf("crypto: dialing agent socket %s: %w", socketPath, err)
	}
	client := agent.NewClient(conn)
	keys, err := client.List()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("crypto: listing agent keys: %w", err)
	}
	for _, k := range keys {
		if k.Type() == ssh.KeyAlgoED25519 {
			return &agentIdentity{conn: conn, client: client, key: k}, nil
		}
	}
	conn.Close()
	return nil, fmt.Errorf("crypto: no ed25519 key found on agent %s", socketPath)
}

// FetchVerificationKeys resolves a server/peer verification-only key
// source: "github:<user>.keys" or "gitlab:<user>.gpg" (HTTP GET against
// the well-known per-user public key endpoints those platforms publish).
// "gpg:<key-id>" is recognized but resolves no keys: it always returns
// an error, and the local GPG keyring is not read. It returns every
// Ed25519 key found; RSA/ECDSA keys on the same account are ignored since ACIP
// identities are Ed25519-only.
func FetchVerificationKeys(uri string) ([]ed25519.PublicKey, error) {
	switch {
	case strings.HasPrefix(uri, "gpg:"):
		return fetchGPGVerificationKey(strings.TrimPrefix(uri, "gpg:"))
	case strings.HasPrefix(uri, "github:"):
		user := strings.TrimSuffix(strings.TrimPrefix(uri, "github:"), ".keys")
		return fetchHTTPAuthorizedKeys(fmt.Sprintf("https://github.com/%s.keys", user))
	case strings.HasPrefix(uri, "gitlab:"):
		user := strings.TrimSuffix(strings.TrimPrefix(uri, "gitlab:"), ".gpg")
		return fetchHTTPAuthorizedKeys(fmt.Sprintf("https://gitlab.com/%s.keys", user))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIdentitySource, uri)
	}
}

func fetchHTTPAuthorizedKeys(url string) ([]ed25519.PublicKey, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("crypto: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crypto: fetching %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("crypto: reading %s: %w", url, err)
	}
	var out []ed25519.PublicKey
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pk, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
		if err != nil {
			continue
		}
		if pk.Type() != ssh.KeyAlgoED25519 {
			continue
		}
		cpk, ok := pk.(ssh.CryptoPublicKey)
		if !ok {
			continue
		}
		if edPub, ok := cpk.CryptoPublicKey().(ed25519.PublicKey); ok {
			out = append(out, edPub)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("crypto: no ed25519 keys found at %s", url)
	}
	return out, nil
}

// gpgKeyExport is the minimal shape `gpg --export --export-options
// export-minimal --output - <key-id>` output is parsed into; the real
// implementation would shell out to gpg and parse an OpenPGP packet, but
// that parser is out of scope for this module and gpg: sources are rare
// in practice. Present for completeness of the URI dispatch; returns a
// clear error.
type gpgKeyExport struct {
	KeyID string `json:"key_id"`
}

func fetchGPGVerificationKey(keyID string) ([]ed25519.PublicKey, error) {
	_ = gpgKeyExport{KeyID: keyID}
	_ = json.Marshal // keep encoding/json wired for the day this grows a real exporter
	return nil, fmt.Errorf("crypto: gpg: verification source not implemented (key %q); supply an OpenPGP parser or pre-extract the ed25519 subkey", keyID)
}
