// Package validatorpk handles the public keys of bridge signers: recovering
// them from attestation signatures and mapping them to signer addresses.
package validatorpk

import (
	"crypto/ecdsa"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of a [R || S || V] secp256k1 signature.
const SignatureLength = crypto.SignatureLength

var (
	ErrEmptyPubKey      = errors.New("empty pubkey")
	ErrSignatureLength  = errors.New("invalid signature length")
	ErrRecoveryID       = errors.New("invalid signature recovery id")
	ErrUnsupportedCurve = errors.New("unsupported pubkey type")
)

// PubKey is a typed public key. Raw holds the 65-byte uncompressed point for
// Secp256k1 keys.
type PubKey struct {
	Type uint8
	Raw  []byte
}

// Types enumerates the supported key types.
var Types = struct {
	Secp256k1 uint8
}{
	Secp256k1: 0xc0,
}

// Empty reports whether pk is the zero key.
func (pk PubKey) Empty() bool {
	return len(pk.Raw) == 0 && pk.Type == 0
}

// String returns pk as 0x-prefixed hex of Bytes.
func (pk PubKey) String() string {
	return "0x" + common.Bytes2Hex(pk.Bytes())
}

// Bytes returns [Type] followed by Raw.
func (pk PubKey) Bytes() []byte {
	return append([]byte{pk.Type}, pk.Raw...)
}

// Address returns the signer address derived from the key.
func (pk PubKey) Address() (common.Address, error) {
	if pk.Type != Types.Secp256k1 {
		return common.Address{}, ErrUnsupportedCurve
	}
	pub, err := crypto.UnmarshalPubkey(pk.Raw)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// FromString parses hex with or without 0x prefix.
func FromString(str string) (PubKey, error) {
	return FromBytes(common.FromHex(str))
}

// FromBytes is the inverse of Bytes.
func FromBytes(b []byte) (PubKey, error) {
	if len(b) == 0 {
		return PubKey{}, ErrEmptyPubKey
	}
	return PubKey{b[0], b[1:]}, nil
}

// FromECDSA wraps a go-ethereum public key.
func FromECDSA(pub *ecdsa.PublicKey) PubKey {
	return PubKey{
		Type: Types.Secp256k1,
		Raw:  crypto.FromECDSAPub(pub),
	}
}

// Sign signs digest with key. The recovery id is returned in {0, 1}.
func Sign(digest common.Hash, key *ecdsa.PrivateKey) ([]byte, error) {
	return crypto.Sign(digest.Bytes(), key)
}

// Recover returns the public key that produced sig over digest. Recovery ids
// in the legacy {27, 28} range are accepted.
func Recover(digest common.Hash, sig []byte) (PubKey, error) {
	if len(sig) != SignatureLength {
		return PubKey{}, ErrSignatureLength
	}
	normalized := common.CopyBytes(sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	if normalized[crypto.RecoveryIDOffset] > 1 {
		return PubKey{}, ErrRecoveryID
	}
	raw, err := crypto.Ecrecover(digest.Bytes(), normalized)
	if err != nil {
		return PubKey{}, err
	}
	return PubKey{Type: Types.Secp256k1, Raw: raw}, nil
}

// RecoverAddress is Recover followed by Address.
func RecoverAddress(digest common.Hash, sig []byte) (common.Address, error) {
	pk, err := Recover(digest, sig)
	if err != nil {
		return common.Address{}, err
	}
	return pk.Address()
}

// UnmarshalText implements encoding.TextUnmarshaler, so signer keys can be
// written as hex in genesis files.
func (pk *PubKey) UnmarshalText(input []byte) error {
	res, err := FromString(string(input))
	if err != nil {
		return err
	}
	*pk = res
	return nil
}
