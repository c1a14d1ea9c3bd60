package secret

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("secret: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("secret: entropy bits must be 128 or 256")

	// ErrDecryptionFailed indicates wrong password or corrupted snapshot data.
	ErrDecryptionFailed = errors.New("secret: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates seed checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("secret: seed checksum mismatch")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("secret: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("secret: key derivation failed")

	// ErrIndexOutOfRange indicates an account or address index reaches the
	// BIP32 hardened boundary.
	ErrIndexOutOfRange = errors.New("secret: index exceeds maximum (2^31-1)")

	// ErrUnknownInputAddress indicates an input whose owner this manager
	// cannot unlock.
	ErrUnknownInputAddress = errors.New("secret: cannot unlock input address")

	// ErrSigningDeclined indicates the user rejected the signing request.
	ErrSigningDeclined = errors.New("secret: signing declined")
)
