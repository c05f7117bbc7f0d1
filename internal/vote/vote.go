// Package vote implements the PBFT vote subsystem: the VRF-gated
// sortition message every vote carries, the signed vote itself, and
// weighted tallying toward the 2t+1 threshold.
package vote

import (
	"encoding/binary"
	"math/big"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vrf"
)

// Type enumerates the four PBFT vote kinds.
type Type uint8

const (
	TypePropose Type = iota
	TypeSoft
	TypeCert
	TypeNext
)

// Sortition is the VRF-gated message a vote's credential is computed
// over: (type, round, step, weighted_index) — one independent draw per
// weighted copy of a voter's stake.
type Sortition struct {
	Type           Type
	Round          uint64
	Step           uint64
	WeightedIndex  uint64
	VrfPublicKey   types.PublicKey
	Proof          []byte
	Output         []byte
}

// alpha is the byte message the VRF is proven/verified over: the
// four-item (type, round, step, weighted_index) sortition message.
func (s Sortition) alpha() []byte {
	buf := make([]byte, 25)
	buf[0] = byte(s.Type)
	binary.BigEndian.PutUint64(buf[1:9], s.Round)
	binary.BigEndian.PutUint64(buf[9:17], s.Step)
	binary.BigEndian.PutUint64(buf[17:25], s.WeightedIndex)
	return buf
}

// NewSortition draws a fresh VRF sortition for (type, round, step,
// weightedIndex) using sk.
func NewSortition(sk *crypto.PrivateKey, t Type, round, step, weightedIndex uint64) (Sortition, error) {
	s := Sortition{Type: t, Round: round, Step: step, WeightedIndex: weightedIndex, VrfPublicKey: sk.PublicKey()}
	beta, pi, err := vrf.Prove(sk, s.alpha())
	if err != nil {
		return Sortition{}, err
	}
	s.Proof, s.Output = pi, beta
	return s, nil
}

// Verify recomputes the VRF output from the sortition's own fields and
// checks it matches Output.
func (s Sortition) Verify() bool {
	beta, err := vrf.Verify(s.VrfPublicKey, s.alpha(), s.Proof)
	if err != nil {
		return false
	}
	return bytesEqual(beta, s.Output)
}

// CanSpeak reports whether this sortition's credential clears the
// sortition bar for a committee of size threshold out of
// totalEligibleVotes: the 256-bit ticket must not exceed
// vrf.Threshold(threshold, totalEligibleVotes).
func (s Sortition) CanSpeak(threshold, totalEligibleVotes types.Weight) bool {
	t := vrf.Threshold(threshold, totalEligibleVotes)
	return new(big.Int).SetBytes(s.Output).Cmp(t) <= 0
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

// Vote is a single signed PBFT vote: a voter's assertion, for a given
// round/step/weighted-copy, that blockHash is the value to proceed
// with.
type Vote struct {
	BlockHash types.Hash
	Sortition Sortition
	Signature types.Signature

	hash  *types.Hash
	voter *types.Address
}

// signedFields is the payload that gets signed: (blockHash, sortition
// fields).
func (v *Vote) signedFields() []byte {
	buf := make([]byte, 0, 64+len(v.Sortition.VrfPublicKey)+len(v.Sortition.Proof)+len(v.Sortition.Output))
	buf = append(buf, v.BlockHash[:]...)
	buf = append(buf, v.Sortition.alpha()...)
	buf = append(buf, v.Sortition.VrfPublicKey[:]...)
	buf = append(buf, v.Sortition.Proof...)
	buf = append(buf, v.Sortition.Output...)
	return buf
}

// Sign produces a new signed Vote for blockHash using sortition and sk.
func Sign(sk *crypto.PrivateKey, blockHash types.Hash, sortition Sortition) (*Vote, error) {
	v := &Vote{BlockHash: blockHash, Sortition: sortition}
	sig, err := crypto.Sign(sk, types.Sha3(v.signedFields()))
	if err != nil {
		return nil, err
	}
	v.Signature = sig
	return v, nil
}

// Hash returns the vote's content hash (sha3 of signed fields +
// signature), memoized.
func (v *Vote) Hash() types.Hash {
	if v.hash != nil {
		return *v.hash
	}
	buf := v.signedFields()
	buf = append(buf, v.Signature[:]...)
	h := types.Sha3(buf)
	v.hash = &h
	return h
}

// Voter recovers and memoizes the signer's address. A zero address
// with ok=false means the signature failed to recover: a recovered
// public key is what makes the vote considered verified.
func (v *Vote) Voter() (types.Address, bool) {
	if v.voter != nil {
		return *v.voter, true
	}
	_, addr, ok := crypto.Recover(v.Signature, types.Sha3(v.signedFields()))
	if !ok {
		return types.Address{}, false
	}
	v.voter = &addr
	return addr, true
}

// VerifySortition re-derives the VRF output the sortition claims and
// checks the voter cleared the sortition bar for this committee size.
func (v *Vote) VerifySortition(threshold, totalEligibleVotes types.Weight) error {
	if !v.Sortition.Verify() {
		return errs.NewValidation("vote vrf proof", nil)
	}
	if !v.Sortition.CanSpeak(threshold, totalEligibleVotes) {
		return errs.NewValidation("vote failed sortition", nil)
	}
	return nil
}
