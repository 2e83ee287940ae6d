package crypto

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// KnownHosts is a trust-on-first-use store of endpoint -> identity public
// key pins, file format "<host>[:port] ed25519 <hex32> [comment...]" per
// line, one endpoint per line. Access is serialized with a
// single-writer file lock so two local processes never interleave
// writes, grounded on ingest's use of gofrs/flock around its persisted
// state files.
type KnownHosts struct {
	path string
}

// NewKnownHosts opens (without yet reading) the known-hosts file at path.
func NewKnownHosts(path string) *KnownHosts {
	return &KnownHosts{path: path}
}

type hostEntry struct {
	endpoint string
	keyType  string
	pubHex   string
	comment  string
}

func parseHostLine(line string) (hostEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return hostEntry{}, false
	}
	fields := strings.Fields(line)
	if len(fields) < 3 {
		return hostEntry{}, false
	}
	e := hostEntry{endpoint: fields[0], keyType: fields[1], pubHex: fields[2]}
	if len(fields) > 3 {
		e.comment = strings.Join(fields[3:], " ")
	}
	return e, true
}

func (e hostEntry) String() string {
	if e.comment != "" {
		return fmt.Sprintf("%s %s %s %s", e.endpoint, e.keyType, e.pubHex, e.comment)
	}
	return fmt.Sprintf("%s %s %s", e.endpoint, e.keyType, e.pubHex)
}

// normalizeEndpoint brackets bare IPv6 literals the way "host:port"
// addressing requires, leaving hostnames and already-bracketed literals
// untouched.
func normalizeEndpoint(endpoint string) string {
	if strings.Count(endpoint, ":") > 1 && !strings.HasPrefix(endpoint, "[") {
		if idx := strings.LastIndex(endpoint, ":"); idx >= 0 && looksLikePort(endpoint[idx+1:]) {
			return "[" + endpoint[:idx] + "]:" + endpoint[idx+1:]
		}
		return "[" + endpoint + "]"
	}
	return endpoint
}

func looksLikePort(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (k *KnownHosts) readAll() ([]hostEntry, error) {
	f, err := os.Open(k.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var entries []hostEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if e, ok := parseHostLine(sc.Text()); ok {
			entries = append(entries, e)
		}
	}
	return entries, sc.Err()
}

func (k *KnownHosts) writeAll(entries []hostEntry) error {
	if dir := filepath.Dir(k.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	tmp := k.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, e := range entries {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, k.path)
}

func (k *KnownHosts) lock() (*flock.Flock, error) {
	fl := flock.New(k.path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("crypto: locking known_hosts: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("crypto: known_hosts is locked by another process")
	}
	return fl, nil
}

// Lookup returns the pinned key for endpoint, or (nil, false) if unknown.
func (k *KnownHosts) Lookup(endpoint string) (ed25519.PublicKey, bool, error) {
	endpoint = normalizeEndpoint(endpoint)
	entries, err := k.readAll()
	if err != nil {
		return nil, false, err
	}
	for _, e := range entries {
		if e.endpoint == endpoint {
			raw, err := hex.DecodeString(e.pubHex)
			if err != nil || len(raw) != ed25519.PublicKeySize {
				return nil, false, fmt.Errorf("crypto: malformed known_hosts entry for %s", endpoint)
			}
			return ed25519.PublicKey(raw), true, nil
		}
	}
	return nil, false, nil
}

// Verify checks presented against the pin for endpoint. If no pin
// exists, it trusts-on-first-use by adding one (unless insecureSkipTOFU,
// in which case the caller should not be calling Verify at all). If a
// pin exists and differs, it returns *PeerKeyChangedError.
func (k *KnownHosts) Verify(endpoint string, presented ed25519.PublicKey) error {
	endpoint = normalizeEndpoint(endpoint)
	fl, err := k.lock()
	if err != nil {
		return err
	}
	defer fl.Unlock()

	entries, err := k.readAll()
	if err != nil {
		return err
	}
	presentedHex := hex.EncodeToString(presented)
	for i, e := range entries {
		if e.endpoint == endpoint {
			if e.pubHex != presentedHex {
				return &PeerKeyChangedError{Endpoint: endpoint, Expected: e.pubHex, Got: presentedHex}
			}
			_ = i
			return nil
		}
	}
	entries = append(entries, hostEntry{endpoint: endpoint, keyType: "ed25519", pubHex: presentedHex})
	return k.writeAll(entries)
}

// Add pins presented for endpoint unconditionally, failing if a
// (different) pin already exists — used by out-of-band key-import
// tooling rather than the live TOFU path.
func (k *KnownHosts) Add(endpoint string, presented ed25519.PublicKey) error {
	endpoint = normalizeEndpoint(endpoint)
	fl, err := k.lock()
	if err != nil {
		return err
	}
	defer fl.Unlock()

	entries, err := k.readAll()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.endpoint == endpoint {
			return fmt.Errorf("%w: %s", ErrDuplicateKnownHost, endpoint)
		}
	}
	entries = append(entries, hostEntry{endpoint: endpoint, keyType: "ed25519", pubHex: hex.EncodeToString(presented)})
	return k.writeAll(entries)
}
