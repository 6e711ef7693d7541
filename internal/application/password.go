package application

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidPasswordHash         = errors.New("application: invalid password hash format")
	ErrIncompatiblePasswordVersion = errors.New("application: incompatible password hash version")
	errPasswordMismatch            = errors.New("application: password mismatch")
)

// PasswordHasher hashes and verifies user passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) error
}

type Argon2idParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultArgon2idParams = Argon2idParams{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Argon2idHasher encodes hashes in the PHC string format
// $argon2id$v=19$m=...,t=...,p=...$salt$hash.
type Argon2idHasher struct {
	Params Argon2idParams
}

// NewArgon2idHasher returns a hasher using params, or the defaults when params is zero.
func NewArgon2idHasher(params Argon2idParams) *Argon2idHasher {
	if params == (Argon2idParams{}) {
		params = DefaultArgon2idParams
	}
	return &Argon2idHasher{Params: params}
}

// Hash derives a new salted hash for password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	p := h.Params
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, p.Iterations, p.Memory, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.Memory, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify checks password against an encoded hash. The parameters stored in the
// hash are used, so hashes made with older settings keep verifying.
func (h *Argon2idHasher) Verify(encoded, password string) error {
	params, salt, key, err := decodeArgon2id(encoded)
	if err != nil {
		return err
	}
	candidate := argon2.IDKey([]byte(password), salt, params.Iterations, params.Memory, params.Parallelism, params.KeyLength)
	if subtle.ConstantTimeCompare(key, candidate) != 1 {
		return errPasswordMismatch
	}
	return nil
}

func decodeArgon2id(encoded string) (Argon2idParams, []byte, []byte, error) {
	var params Argon2idParams

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return params, nil, nil, ErrInvalidPasswordHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	if version != argon2.Version {
		return params, nil, nil, ErrIncompatiblePasswordVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.Memory, &params.Iterations, &params.Parallelism); err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return params, nil, nil, ErrInvalidPasswordHash
	}
	params.SaltLength = uint32(len(salt))
	params.KeyLength = uint32(len(key))
	return params, salt, key, nil
}
