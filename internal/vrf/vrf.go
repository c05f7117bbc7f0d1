// Package vrf implements the VRF-sortition primitive: every DAG block
// and every vote is gated by a verifiable-random-function ticket, and
// a participant may
// only "speak" (propose or vote) when that ticket falls under a
// weight-proportional threshold.
package vrf

import (
	"math/big"

	"github.com/vechain/go-ecvrf"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

// ecvrfSecp256k1 is the ECVRF-SECP256K1-SHA256-TAI construction; it is
// stateless so a single package-level instance is shared by Prove and
// Verify.
var ecvrfSecp256k1 = ecvrf.NewSecp256k1Sha256Tai()

// maxHash512 is 2^512, the modulus used by the sortition threshold
// comparison: ticket*V <= threshold*2^512, using 512-bit arithmetic
// since both the VRF output and the weighted threshold can occupy the
// full 256-bit range and their product must not overflow.
var maxHash512 = new(big.Int).Lsh(big.NewInt(1), 512)

// Prove computes the VRF output (beta) and proof (pi) over alpha using
// sk. beta is the sortition ticket; pi lets any verifier recompute and
// check it without the private key.
func Prove(sk *crypto.PrivateKey, alpha []byte) (beta, pi []byte, err error) {
	return ecvrfSecp256k1.Prove(sk.ECDSA(), alpha)
}

// Verify recomputes beta from pk, alpha, and pi, returning an error if
// pi does not verify against pk and alpha.
func Verify(pub types.PublicKey, alpha, pi []byte) (beta []byte, err error) {
	pk, err := crypto.PublicKeyToECDSA(pub)
	if err != nil {
		return nil, err
	}
	return ecvrfSecp256k1.Verify(pk, alpha, pi)
}

// Threshold computes ceil(committeeSize * MAX_HASH / totalWeight),
// saturating at MAX_HASH when the committee size is not smaller than
// the total weight (everyone can speak).
func Threshold(committeeSize, totalWeight types.Weight) *big.Int {
	maxHash := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if totalWeight == 0 || committeeSize >= totalWeight {
		return maxHash
	}
	num := new(big.Int).Mul(big.NewInt(int64(committeeSize)), maxHash)
	den := big.NewInt(int64(totalWeight))
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// CanSpeak reports whether a ticket derived from beta, weighted by
// voterWeight against threshold, clears the
// sortition bar: ticket*voterWeight <= threshold*2^512. The
// comparison is carried out over 512-bit integers because ticket and
// threshold are each up to 256 bits and their product with a 64-bit
// weight must not silently wrap.
func CanSpeak(beta []byte, voterWeight types.Weight, threshold *big.Int) bool {
	if voterWeight == 0 {
		return false
	}
	ticket := new(big.Int).SetBytes(beta)
	lhs := new(big.Int).Mul(ticket, big.NewInt(int64(voterWeight)))
	rhs := new(big.Int).Mul(threshold, maxHash512)
	return lhs.Cmp(rhs) <= 0
}

// WeightedCount returns how many of the voterWeight weighted copies of
// a ticket clear the threshold bar individually: each unit of stake
// gets an independent sortition draw derived from the same beta but a
// distinct copy index.
func WeightedCount(beta []byte, voterWeight types.Weight, threshold *big.Int) uint64 {
	var count uint64
	for i := types.Weight(0); i < voterWeight; i++ {
		copyTicket := copyHash(beta, i)
		ticket := new(big.Int).SetBytes(copyTicket[:])
		rhs := threshold
		if ticket.Cmp(rhs) <= 0 {
			count++
		}
	}
	return count
}

// copyHash derives the per-copy ticket for weighted-vote sortition:
// sha3(beta || copy_index).
func copyHash(beta []byte, index types.Weight) types.Hash {
	buf := make([]byte, len(beta)+8)
	copy(buf, beta)
	for i := 0; i < 8; i++ {
		buf[len(beta)+7-i] = byte(index)
		index >>= 8
	}
	return types.Sha3(buf)
}
