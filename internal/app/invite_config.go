package app

import "github.com/charlesng35/estateportal/pkg/crypto"

// KDFParams returns the invite code hashing parameters. Incomplete or invalid
// settings fall back to the package defaults as a whole.
func (c InviteConfig) KDFParams() crypto.Argon2Parameters {
	params := crypto.Argon2Parameters{
		Time:      c.KDF.Time,
		Memory:    c.KDF.Memory,
		Threads:   c.KDF.Threads,
		KeyLength: c.KDF.KeyLength,
	}
	if params.Validate() != nil {
		return crypto.DefaultArgon2Params()
	}
	return params
}
