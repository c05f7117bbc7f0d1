// Package crypto wraps the secp256k1 primitives the consensus core
// needs: signing, signature verification, and producer-address
// recovery for DAG blocks, PBFT blocks, and votes, plus the ecdsa.*
// key types the VRF wrapper hands to go-ecvrf.
package crypto

import (
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

// PrivateKey is a secp256k1 signing key.
type PrivateKey struct {
	key *ecdsa.PrivateKey
}

// GeneratePrivateKey returns a fresh random private key.
func GeneratePrivateKey() (*PrivateKey, error) {
	k, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: k}, nil
}

// PrivateKeyFromBytes parses a 32-byte scalar.
func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	k, err := ethcrypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key: k}, nil
}

// ECDSA exposes the underlying stdlib key, e.g. to feed go-ecvrf.
func (k *PrivateKey) ECDSA() *ecdsa.PrivateKey { return k.key }

// Bytes returns the 32-byte scalar encoding.
func (k *PrivateKey) Bytes() []byte { return ethcrypto.FromECDSA(k.key) }

// PublicKey returns the uncompressed public key (64 bytes, X||Y).
func (k *PrivateKey) PublicKey() types.PublicKey {
	raw := ethcrypto.FromECDSAPub(&k.key.PublicKey) // 0x04 || X || Y
	var out types.PublicKey
	copy(out[:], raw[1:])
	return out
}

// Address derives the 20-byte address the same way the rest of the
// corpus's EVM-flavored chains do: the low 20 bytes of keccak256 of
// the uncompressed public key.
func Address(pub types.PublicKey) types.Address {
	raw := append([]byte{0x04}, pub[:]...)
	ecdsaPub, err := ethcrypto.UnmarshalPubkey(raw)
	if err != nil {
		return types.Address{}
	}
	return types.Address(ethcrypto.PubkeyToAddress(*ecdsaPub))
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func Sign(key *PrivateKey, digest types.Hash) (types.Signature, error) {
	sig, err := ethcrypto.Sign(digest[:], key.key)
	if err != nil {
		return types.Signature{}, err
	}
	var out types.Signature
	copy(out[:], sig)
	return out, nil
}

// Recover recovers the uncompressed public key and address that
// produced sig over digest. Returns the zero address and false if the
// signature does not recover.
func Recover(sig types.Signature, digest types.Hash) (types.PublicKey, types.Address, bool) {
	pub, err := ethcrypto.SigToPub(digest[:], sig[:])
	if err != nil {
		return types.PublicKey{}, types.Address{}, false
	}
	raw := ethcrypto.FromECDSAPub(pub)
	var pk types.PublicKey
	copy(pk[:], raw[1:])
	return pk, types.Address(ethcrypto.PubkeyToAddress(*pub)), true
}

// Verify checks that sig over digest recovers to want.
func Verify(sig types.Signature, digest types.Hash, want types.Address) bool {
	_, addr, ok := Recover(sig, digest)
	return ok && addr == want
}

// PublicKeyToECDSA converts the wire PublicKey form back into a stdlib
// *ecdsa.PublicKey, e.g. to feed go-ecvrf's Verify.
func PublicKeyToECDSA(pub types.PublicKey) (*ecdsa.PublicKey, error) {
	raw := append([]byte{0x04}, pub[:]...)
	return ethcrypto.UnmarshalPubkey(raw)
}
