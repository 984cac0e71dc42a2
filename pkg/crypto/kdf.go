package crypto

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/crypto/argon2"
)

const minSaltLength = 16

// Argon2Parameters are the Argon2id cost factors used to hash invite codes.
// Changing them invalidates every outstanding invite, since codes are
// re-derived with the current parameters at validation time.
type Argon2Parameters struct {
	Time      uint32 // iterations
	Memory    uint32 // KiB
	Threads   uint8
	KeyLength uint32 // bytes
}

// DefaultArgon2Params returns the parameters used to hash invite codes.
// Codes are short lived and attempt limited, so the memory cost stays modest
// to keep validation latency low under load.
func DefaultArgon2Params() Argon2Parameters {
	return Argon2Parameters{
		Time:      1,
		Memory:    19 * 1024,
		Threads:   1,
		KeyLength: 32,
	}
}

// Validate reports every problem with the parameters at once.
func (p Argon2Parameters) Validate() error {
	var errs error
	if p.Time == 0 {
		errs = multierr.Append(errs, errors.New("argon2: time cost must be greater than zero"))
	}
	if p.Threads == 0 {
		errs = multierr.Append(errs, errors.New("argon2: parallelism must be greater than zero"))
	} else if p.Memory < 8*uint32(p.Threads) {
		errs = multierr.Append(errs, errors.New("argon2: memory cost must be at least 8 * threads"))
	}
	switch p.KeyLength {
	case 16, 24, 32:
	default:
		errs = multierr.Append(errs, fmt.Errorf("argon2: key length must be 16, 24, or 32 bytes (got %d)", p.KeyLength))
	}
	return errs
}

// DeriveKeyArgon2id derives a key using the Argon2id KDF.
func DeriveKeyArgon2id(secret, salt []byte, params Argon2Parameters) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("argon2: secret is required")
	}
	if len(salt) < minSaltLength {
		return nil, fmt.Errorf("argon2: salt must be at least %d bytes (got %d)", minSaltLength, len(salt))
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return argon2.IDKey(secret, salt, params.Time, params.Memory, params.Threads, params.KeyLength), nil
}
