package natcascade

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// backupAddrMinInterval and backupAddrMaxInterval bound the elected
// host's BACKUP_ADDR broadcast cadence: every 30-60s, piggybacked on
// keepalive.
const (
	backupAddrMinInterval = 30 * time.Second
	backupAddrMaxInterval = 60 * time.Second
)

// BackupAddrBroadcaster decides, on each keepalive tick, whether it is
// time to (re)broadcast the host's backup address. It uses a
// rate.Limiter as the gate (the same token-bucket idiom throttle.go
// uses for ingest bandwidth pacing, repurposed here as a one-shot
// interval gate with burst 1), re-arming the limiter's rate to a fresh
// jittered value in [min, max) after every broadcast so a ring of
// participants doesn't all re-publish in lockstep.
type BackupAddrBroadcaster struct {
	mtx     sync.Mutex
	limiter *rate.Limiter
	jitter  func() time.Duration
}

// NewBackupAddrBroadcaster builds a broadcaster; jitter is injected so
// tests can make the interval deterministic.
func NewBackupAddrBroadcaster(jitter func() time.Duration) *BackupAddrBroadcaster {
	b := &BackupAddrBroadcaster{jitter: jitter}
	b.limiter = rate.NewLimiter(rate.Every(b.nextInterval()), 1)
	return b
}

func (b *BackupAddrBroadcaster) nextInterval() time.Duration {
	return backupAddrMinInterval + b.jitter()%(backupAddrMaxInterval-backupAddrMinInterval)
}

// ShouldBroadcast reports whether it's time to emit another
// BACKUP_ADDR, and if so re-arms the limiter with a fresh interval.
func (b *BackupAddrBroadcaster) ShouldBroadcast(now time.Time) bool {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if !b.limiter.AllowN(now, 1) {
		return false
	}
	b.limiter.SetLimitAt(now, rate.Every(b.nextInterval()))
	b.limiter.SetBurstAt(now, 1)
	return true
}

// BackupAddrStore durably holds the most recently received backup
// address for the current session, so a peer can reconnect directly to
// it on host loss instead of re-querying ACDS first.
type BackupAddrStore struct {
	mtx  sync.RWMutex
	addr string
}

// NewBackupAddrStore returns an empty store.
func NewBackupAddrStore() *BackupAddrStore { return &BackupAddrStore{} }

// Set records a freshly received backup address, overwriting any
// previous value.
func (s *BackupAddrStore) Set(addr string) {
	s.mtx.Lock()
	s.addr = addr
	s.mtx.Unlock()
}

// Get returns the stored backup address, or "" if none has been
// received yet this session.
func (s *BackupAddrStore) Get() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.addr
}
