// Package security contains everything related to the security of user data
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrHashFormat = errors.New("invalid hash format")

type ArgonHash struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// New returns an argon2id hasher. Zero parameters fall back to the defaults
// (64 MiB, 3 iterations, 2 lanes).
func New(memory, iterations uint32, parallelism uint8) *ArgonHash {
	a := &ArgonHash{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}

	if memory > 0 {
		a.Memory = memory
	}
	if iterations > 0 {
		a.Iterations = iterations
	}
	if parallelism > 0 {
		a.Parallelism = parallelism
	}

	return a
}

// GenerateFromPassword hashes p into the PHC string format
func (a *ArgonHash) GenerateFromPassword(p string) (string, error) {
	salt := make([]byte, a.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(p), salt, a.Iterations, a.Memory, a.Parallelism, a.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.Memory, a.Iterations, a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// VerifyPasswd compares a password p with the stored encoded hash e using
// the parameters recorded in e
func (a *ArgonHash) VerifyPasswd(p, e string) (bool, error) {
	d, err := decodeHash(e)
	if err != nil {
		return false, err
	}

	calc := argon2.IDKey([]byte(p), d.salt, d.iterations, d.memory, d.parallelism, uint32(len(d.hash)))

	return subtle.ConstantTimeCompare(d.hash, calc) == 1, nil
}

// NeedsRehash reports whether e was produced with other parameters than the
// ones a is configured with
func (a *ArgonHash) NeedsRehash(e string) bool {
	d, err := decodeHash(e)
	if err != nil {
		return true
	}

	return d.memory != a.Memory ||
		d.iterations != a.Iterations ||
		d.parallelism != a.Parallelism ||
		uint32(len(d.hash)) != a.KeyLength
}

type decodedHash struct {
	memory, iterations uint32
	parallelism        uint8
	salt, hash         []byte
}

func decodeHash(e string) (*decodedHash, error) {
	parts := strings.Split(e, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, ErrHashFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, ErrHashFormat
	}

	var d decodedHash
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.memory, &d.iterations, &d.parallelism); err != nil {
		return nil, ErrHashFormat
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, ErrHashFormat
	}

	if d.hash, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(d.hash) == 0 {
		return nil, ErrHashFormat
	}

	return &d, nil
}
