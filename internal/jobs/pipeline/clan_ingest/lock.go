package clan_ingest

import (
	"context"

	"github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/pkg/keylock"
)

// LocalLocker is the in-process ClanLocker used when no shared lock is configured.
type LocalLocker struct {
	m *keylock.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{m: keylock.New()}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	return l.m.LockContext(ctx, key)
}
