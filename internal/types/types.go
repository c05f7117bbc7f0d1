// Package types defines the wire data model shared across the
// consensus core: hashes, addresses, DAG blocks, PBFT blocks, and
// their bit-exact canonical serialization.
package types

import (
	"encoding/binary"

	"github.com/luxfi/ids"
	"golang.org/x/crypto/sha3"
)

// Hash is the 32-byte content identifier used for DAG blocks, PBFT
// blocks, votes, and transactions. It is luxfi/ids's hash type, which
// the rest of the consensus stack already uses as its universal
// identifier.
type Hash = ids.ID

// EmptyHash is the canonical "null" hash (e.g. the round-1 proposal
// anchor, or an absent pivot).
var EmptyHash = ids.Empty

// Address is a 20-byte account address, recovered from a signature.
type Address [20]byte

// IsZero reports whether the address is the zero address.
func (a Address) IsZero() bool { return a == Address{} }

// PublicKey is an uncompressed secp256k1 public key (64 bytes, X||Y).
type PublicKey [64]byte

// Signature is a 65-byte recoverable ECDSA signature (R||S||V).
type Signature [65]byte

// VdfSolution is the 5-item list carried alongside a DAG block: the
// VRF public key used to derive the sortition ticket, the VRF proof,
// the two Wesolowski proof components, and the resulting difficulty.
type VdfSolution struct {
	VrfPublicKey []byte
	VrfProof     []byte
	ProofPi      []byte
	ProofL       []byte
	Difficulty   uint16
}

// Weight is the DPOS-effective voting weight used by the sortition
// threshold and 2t+1 computations. It stays a plain uint64: the
// corpus's effective vote counts are small integers and never need
// wide arithmetic on their own (only the VRF ticket comparison does).
type Weight = uint64

// DagBlock is a labelled DAG vertex. Level is strictly one greater
// than the maximum level among pivot and tips.
type DagBlock struct {
	Pivot     Hash
	Level     uint64
	Timestamp uint64
	Vdf       VdfSolution
	Tips      []Hash
	Trxs      []Hash
	Producer  Address
	Signature Signature

	hash *Hash
}

// signedFields returns the six-item list whose sha3 is the DAG
// block's signed hash: (pivot, level, timestamp, vdf, tips, trxs).
func (b *DagBlock) signedFields() []byte {
	buf := make([]byte, 0, 128+32*(len(b.Tips)+len(b.Trxs)))
	buf = append(buf, b.Pivot[:]...)
	buf = appendU64(buf, b.Level)
	buf = appendU64(buf, b.Timestamp)
	buf = appendVdf(buf, b.Vdf)
	buf = appendU64(buf, uint64(len(b.Tips)))
	for _, t := range b.Tips {
		buf = append(buf, t[:]...)
	}
	buf = appendU64(buf, uint64(len(b.Trxs)))
	for _, t := range b.Trxs {
		buf = append(buf, t[:]...)
	}
	return buf
}

// SignedHash returns sha3(pivot, level, timestamp, vdf, tips, trxs) —
// the payload that gets signed by the producer.
func (b *DagBlock) SignedHash() Hash {
	return sha3Hash(b.signedFields())
}

// Hash returns the bit-exact block hash: sha3 of the seven-item list
// including the signature. Memoized since blocks are immutable once
// signed.
func (b *DagBlock) Hash() Hash {
	if b.hash != nil {
		return *b.hash
	}
	buf := b.signedFields()
	buf = append(buf, b.Signature[:]...)
	h := sha3Hash(buf)
	b.hash = &h
	return h
}

// ResetHashCache invalidates the memoized hash; needed after mutating
// a block in place (e.g. while proposing before signing).
func (b *DagBlock) ResetHashCache() { b.hash = nil }

// PbftBlock is the anchor-commitment block a period finalizes around.
type PbftBlock struct {
	PrevHash     Hash
	AnchorHash   Hash
	Period       uint64
	Beneficiary  Address
	Timestamp    uint64
	Signature    Signature

	hash *Hash
}

func (b *PbftBlock) signedFields() []byte {
	buf := make([]byte, 0, 96)
	buf = append(buf, b.PrevHash[:]...)
	buf = append(buf, b.AnchorHash[:]...)
	buf = appendU64(buf, b.Period)
	buf = appendU64(buf, b.Timestamp)
	return buf
}

// SignedHash is sha3 of (prev_hash, anchor_hash, period, timestamp).
func (b *PbftBlock) SignedHash() Hash {
	return sha3Hash(b.signedFields())
}

// Hash is sha3 of the five-item signed form (including signature).
func (b *PbftBlock) Hash() Hash {
	if b.hash != nil {
		return *b.hash
	}
	buf := b.signedFields()
	buf = append(buf, b.Signature[:]...)
	h := sha3Hash(buf)
	b.hash = &h
	return h
}

// PbftBlockCert bundles a PBFT block with the cert-votes that certify
// it.
type PbftBlockCert struct {
	Block     PbftBlock
	CertVotes []VoteRlp
}

// VoteRlp is the minimal encode/decode surface the vote package needs
// from types without creating an import cycle; see vote.Vote for the
// full runtime representation.
type VoteRlp struct {
	VotedHash Hash
	Bytes     []byte
}

func sha3Hash(b []byte) Hash {
	var h Hash
	d := sha3.NewLegacyKeccak256()
	d.Write(b)
	d.Sum(h[:0])
	return h
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendVdf(buf []byte, v VdfSolution) []byte {
	buf = appendU64(buf, uint64(len(v.VrfPublicKey)))
	buf = append(buf, v.VrfPublicKey...)
	buf = appendU64(buf, uint64(len(v.VrfProof)))
	buf = append(buf, v.VrfProof...)
	buf = appendU64(buf, uint64(len(v.ProofPi)))
	buf = append(buf, v.ProofPi...)
	buf = appendU64(buf, uint64(len(v.ProofL)))
	buf = append(buf, v.ProofL...)
	var d [2]byte
	binary.BigEndian.PutUint16(d[:], v.Difficulty)
	return append(buf, d[:]...)
}

// Sha3 exposes the canonical hash function to other packages that need
// to hash arbitrary byte payloads (vote encoding, VRF messages).
func Sha3(b []byte) Hash { return sha3Hash(b) }
