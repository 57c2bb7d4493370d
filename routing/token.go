package routing

import (
	"crypto/rand"
	"crypto/sha1"
	"fmt"
	"sync"

	"github.com/coredht/dht/krpc"
)

// TokenSecretLen is the length in bytes of a token secret.
const TokenSecretLen = 4

// TokenValidator mints and verifies the 20-byte announce tokens handed
// out by get_peers and checked on announce_peer. A token issued under the
// current secret stays valid through one rotation (it is then checked
// against the secret that has become "previous") and stops verifying on
// the second rotation after issuance.
type TokenValidator struct {
	mu     sync.Mutex
	secret [TokenSecretLen]byte
	prev   [TokenSecretLen]byte
}

// NewTokenValidator returns a validator seeded with two fresh random
// secrets.
func NewTokenValidator() (*TokenValidator, error) {
	v := &TokenValidator{}
	if _, err := rand.Read(v.secret[:]); err != nil {
		return nil, fmt.Errorf("routing: seeding token secret: %w", err)
	}
	if _, err := rand.Read(v.prev[:]); err != nil {
		return nil, fmt.Errorf("routing: seeding previous token secret: %w", err)
	}
	return v, nil
}

// GenerateToken mints a token for addr under the current secret.
func (v *TokenValidator) GenerateToken(addr krpc.Endpoint) [krpc.IDLen]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return tokenFor(addr, v.secret)
}

// VerifyToken reports whether token was minted for addr under either the
// current or the previous secret.
func (v *TokenValidator) VerifyToken(addr krpc.Endpoint, token []byte) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	current := tokenFor(addr, v.secret)
	previous := tokenFor(addr, v.prev)
	return bytesEqual(token, current[:]) || bytesEqual(token, previous[:])
}

// RotateTokens moves the current secret to previous and installs a fresh
// random current secret. A token issued under the secret that was current
// before this call remains valid until the next call to RotateTokens.
func (v *TokenValidator) RotateTokens() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	var fresh [TokenSecretLen]byte
	if _, err := rand.Read(fresh[:]); err != nil {
		return fmt.Errorf("routing: rotating token secret: %w", err)
	}
	v.prev = v.secret
	v.secret = fresh
	return nil
}

func tokenFor(addr krpc.Endpoint, secret [TokenSecretLen]byte) [krpc.IDLen]byte {
	h := sha1.New()
	ep := addr.UDPAddr()
	h.Write(ep.IP.To4())
	b := make([]byte, 2)
	b[0] = byte(ep.Port >> 8)
	b[1] = byte(ep.Port)
	h.Write(b)
	h.Write(secret[:])
	var out [krpc.IDLen]byte
	copy(out[:], h.Sum(nil))
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
