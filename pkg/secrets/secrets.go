// Copyright (C) 2025 Wayfarer AI (dev@wayfarer.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package secrets holds provider API keys in mlocked memory.
//
// Keys for the text-generation, routing, and storage providers are sealed
// into memguard enclaves at startup and only opened for the duration of a
// single request-signing call. This keeps plaintext key material off the
// heap, out of swap, and away from memory forensics. Systems without
// sufficient mlock limits can opt into an insecure plain-memory fallback
// via WAYFARER_INSECURE_MEMORY=true.
package secrets

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

// MinMlockLimitKB is the minimum mlock limit required to seal key material.
// Enclaves are tiny; 64 KB covers every provider key plus memguard overhead.
const MinMlockLimitKB = 64

var (
	memguardInitOnce    sync.Once
	mlockSufficient     bool
	currentMlockLimitKB int64
)

// Store is a thread-safe vault of named provider credentials.
//
// # Description
//
// In secure mode each value lives in a memguard Enclave: encrypted at rest
// in process memory, decrypted into a guarded, mlocked buffer only inside
// Use, and wiped immediately after. In insecure mode (explicit opt-in)
// values sit in an ordinary map and Use simply reads them.
//
// # Thread Safety
//
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	enclaves map[string]*memguard.Enclave
	insecure map[string]string // non-nil only in insecure mode
}

// NewStore creates a key store, choosing secure or insecure mode based on
// the system's mlock limit.
//
// Returns an error when the mlock limit is insufficient and the operator
// has not set WAYFARER_INSECURE_MEMORY=true; silently storing keys in
// swappable memory is never the default.
func NewStore() (*Store, error) {
	initMemguard()

	if mlockSufficient {
		return &Store{enclaves: make(map[string]*memguard.Enclave)}, nil
	}

	if os.Getenv("WAYFARER_INSECURE_MEMORY") == "true" {
		slog.Warn("SECURITY: storing API keys in insecure memory - mlock limit insufficient",
			"current_limit_kb", currentMlockLimitKB,
			"required_kb", MinMlockLimitKB,
			"env_override", "WAYFARER_INSECURE_MEMORY=true",
		)
		return newInsecureStore(), nil
	}

	return nil, fmt.Errorf(
		"mlock limit insufficient for secure key storage: have %d KB, need %d KB. "+
			"Raise the limit or set WAYFARER_INSECURE_MEMORY=true",
		currentMlockLimitKB, MinMlockLimitKB,
	)
}

// newInsecureStore builds a plain-memory store. Exposed to tests so they
// do not depend on host mlock configuration.
func newInsecureStore() *Store {
	return &Store{insecure: make(map[string]string)}
}

// Put seals a credential under the given name, replacing any prior value.
// Empty values are ignored so unset config fields never shadow a real key.
func (s *Store) Put(name, value string) {
	if value == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.insecure != nil {
		s.insecure[name] = value
		return
	}
	// NewEnclave wipes the source slice after sealing.
	s.enclaves[name] = memguard.NewEnclave([]byte(value))
}

// Has reports whether a credential is present under the given name.
func (s *Store) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.insecure != nil {
		_, ok := s.insecure[name]
		return ok
	}
	_, ok := s.enclaves[name]
	return ok
}

// Use opens the named credential and passes the plaintext to fn. The
// decrypted buffer is destroyed as soon as fn returns, so fn must not
// retain the string beyond the call (header assembly is fine, struct
// storage is not).
func (s *Store) Use(name string, fn func(key string) error) error {
	s.mu.RLock()
	if s.insecure != nil {
		value, ok := s.insecure[name]
		s.mu.RUnlock()
		if !ok {
			return fmt.Errorf("no credential stored under %q", name)
		}
		return fn(value)
	}
	enclave, ok := s.enclaves[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no credential stored under %q", name)
	}

	buf, err := enclave.Open()
	if err != nil {
		return fmt.Errorf("open credential %q: %w", name, err)
	}
	defer buf.Destroy()

	return fn(buf.String())
}

// FromEnv seals each environment variable under its logical name, skipping
// unset variables. The mapping is logical-name -> env-var.
func (s *Store) FromEnv(vars map[string]string) {
	for name, envVar := range vars {
		s.Put(name, os.Getenv(envVar))
	}
}

// Purge wipes all memguard-allocated memory. Call during graceful shutdown.
func Purge() {
	memguard.Purge()
	slog.Info("Purged all secure memory")
}

// IsMlockAvailable returns whether secure key storage is available and the
// current mlock limit in KB (-1 if unlimited).
func IsMlockAvailable() (bool, int64) {
	initMemguard()
	return mlockSufficient, currentMlockLimitKB
}

// initMemguard performs one-time memguard setup and the rlimit probe.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, currentMlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("Secure key storage initialized",
				"mlock_limit_kb", currentMlockLimitKB,
				"required_kb", MinMlockLimitKB,
			)
		}
	})
}

// checkMlockLimit queries RLIMIT_MEMLOCK and compares against the minimum.
// An unreadable limit is treated as sufficient; memguard will surface the
// real failure if allocation is actually impossible.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= MinMlockLimitKB, limitKB
}
