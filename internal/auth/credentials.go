package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/nerrad567/taskledger/internal/infrastructure/config"
)

// Argon2id parameters. OWASP 2025 recommendation.
const (
	argonTime    = 3         // iterations
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 1         // parallelism
	argonKeyLen  = 32        // output hash length
	argonSaltLen = 16        // salt length
)

// maxPasswordBytes is the bcrypt input limit, applied to both algorithms so
// switching algorithm never changes which passwords are accepted.
const maxPasswordBytes = 72

const argonPrefix = "$argon2id$"

// HashObserver receives the wall time of each successful Hash call.
type HashObserver func(algorithm string, d time.Duration)

// CredentialManager hashes and verifies passwords.
//
// Hashing is CPU-bound and deliberately slow, so every Hash and Verify call
// first acquires a slot from a weighted semaphore sized by
// Settings.MaxConcurrentHashes. A burst of logins queues on the semaphore
// instead of saturating every core.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type CredentialManager struct {
	algorithm  string
	bcryptCost int
	slots      *semaphore.Weighted
	observe    HashObserver
}

// CredentialOption configures a CredentialManager.
type CredentialOption func(*CredentialManager)

// WithHashObserver reports hash latency, e.g. to the telemetry writer.
func WithHashObserver(fn HashObserver) CredentialOption {
	return func(m *CredentialManager) { m.observe = fn }
}

// NewCredentialManager creates a CredentialManager from settings.
func NewCredentialManager(s Settings, opts ...CredentialOption) *CredentialManager {
	s = s.withDefaults()
	m := &CredentialManager{
		algorithm:  s.PasswordAlgorithm,
		bcryptCost: s.BcryptCost,
		slots:      semaphore.NewWeighted(int64(s.MaxConcurrentHashes)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Hash returns a salted one-way hash of password using the configured
// algorithm. A fresh salt is generated on every call.
//
// Returns ErrPasswordRequired or ErrPasswordTooLong for unusable input, or
// the context error if no hashing slot became free before ctx ended.
func (m *CredentialManager) Hash(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for hash slot: %w", err)
	}
	defer m.slots.Release(1)

	start := time.Now()
	var (
		hash string
		err  error
	)
	switch m.algorithm {
	case config.PasswordAlgorithmArgon2id:
		hash, err = hashArgon2id(password)
	default:
		hash, err = hashBcrypt(password, m.bcryptCost)
	}
	if err != nil {
		return "", err
	}

	if m.observe != nil {
		m.observe(m.algorithm, time.Since(start))
	}
	return hash, nil
}

// Verify reports whether password matches hash. It returns false for a
// mismatch, a malformed or unknown hash, or a cancelled context, and never
// says which.
//
// The algorithm is read from the hash prefix, so hashes produced under a
// previous algorithm setting continue to verify.
func (m *CredentialManager) Verify(ctx context.Context, password, hash string) bool {
	if password == "" || hash == "" {
		return false
	}
	// bcrypt ignores bytes past the limit; Hash never accepts such input.
	if len(password) > maxPasswordBytes {
		return false
	}

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return false
	}
	defer m.slots.Release(1)

	if strings.HasPrefix(hash, argonPrefix) {
		ok, err := verifyArgon2id(password, hash)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func hashBcrypt(password string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("generating bcrypt hash: %w", err)
	}
	return string(b), nil
}

// hashArgon2id hashes a plaintext password using Argon2id and returns it
// in PHC string format: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func hashArgon2id(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(password, encodedHash string) (bool, error) {
	salt, hash, params, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string into its components.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}
	if len(hash) == 0 {
		return nil, nil, params, fmt.Errorf("empty hash")
	}

	return salt, hash, params, nil
}
