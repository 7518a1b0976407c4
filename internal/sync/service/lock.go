package service

import (
	"sync"
	"time"

	"courtsync/pkg/logger"
	"courtsync/pkg/model"
)

// LockKeeper owns the panic lock. The process starts unlocked on every boot;
// the lock is deliberately not persisted, so a restart is itself the recovery
// path when the operator locked the system and walked away.
type LockKeeper struct {
	log *logger.Logger

	mu   sync.RWMutex
	lock model.SystemLock
}

func NewLockKeeper(log *logger.Logger) *LockKeeper {
	return &LockKeeper{log: log}
}

// Lock returns the current lock state. Implements the ledger's LockChecker.
func (k *LockKeeper) Lock() model.SystemLock {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.lock
}

// Set applies a lock transition and reports whether anything changed.
// Re-engaging an engaged lock only updates the reason; the original
// engagement time is kept for the audit trail.
func (k *LockKeeper) Set(update model.LockUpdate) (model.SystemLock, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case update.Locked && !k.lock.Locked:
		now := time.Now().UTC()
		k.lock = model.SystemLock{Locked: true, LockedAt: &now, Reason: update.Reason}
		k.log.Warn("Sync lock engaged", "reason", update.Reason)
		return k.lock, true

	case update.Locked && k.lock.Locked:
		if k.lock.Reason == update.Reason {
			return k.lock, false
		}
		k.lock.Reason = update.Reason
		return k.lock, true

	case !update.Locked && k.lock.Locked:
		k.lock = model.SystemLock{}
		k.log.Info("Sync lock released")
		return k.lock, true
	}
	return k.lock, false
}
