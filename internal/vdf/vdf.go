// Package vdf implements VDF-sortition: a VRF-gated, difficulty-adjusted
// proof of elapsed work that every DAG block producer must attach
// before the block is accepted. The delay proof uses the Wesolowski
// construction over a hard-coded 1024-bit RSA modulus (no ecosystem
// dependency in the corpus provides a VDF, so this is a from-scratch
// stdlib implementation grounded directly on the ProverWesolowski
// construction).
package vdf

import (
	"math/big"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/crypto"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/errs"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
	"github.com/Taraxa-project/taraxa-node-sub003/internal/vrf"
)

// N is the hard-coded 1024-bit RSA modulus the Wesolowski group
// exponentiations run over. A production deployment of an untrusted
// RSA group would need a trusted setup; this is a fixed constant.
var N, _ = new(big.Int).SetString(
	"3d1055a514e17cce1290ccb5befb256b00b8aac664e39e754466fcd631004c9e23d16f23"+
		"9aee2a207e5173a7ee8f90ee9ab9b6a745d27c6e850e7ca7332388dfef7e5bbe6267d1f7"+
		"9f9330e44715b3f2066f903081836c1c83ca29126f8fdc5f5922bf3f9ddb4540171691ac"+
		"cc1ef6a34b2a804a18159c89c39b16edee2ede35", 16)

// Config bounds the difficulty-adjusted delay:
// ThresholdSelection/ThresholdOmit gate whether a VDF is
// required at all, DifficultyMin/Max bound the adjustable exponent,
// DifficultyStale is the floor difficulty applied to a stale proposal
// period, and LambdaBound caps the PBFT round-length feedback term.
type Config struct {
	ThresholdSelection uint16
	ThresholdOmit      uint16
	DifficultyMin      uint16
	DifficultyMax      uint16
	DifficultyStale    uint16
	LambdaBound        uint16
}

// Solution is a computed VDF sortition: the VRF proof that gated it
// plus the Wesolowski delay proof (pi, l) over difficulty sequential
// squarings modulo N.
type Solution struct {
	VrfPublicKey types.PublicKey
	VrfProof     []byte
	Beta         []byte
	Pi           []byte
	L            []byte
	Difficulty   uint16
}

// selectionTicket is the big-endian integer formed from the low 16
// bits of beta, used both to decide whether sortition was cleared at
// all (OmitVdf) and to scale the difficulty within [min,max].
func selectionTicket(beta []byte) uint16 {
	if len(beta) < 2 {
		return 0
	}
	return uint16(beta[len(beta)-2])<<8 | uint16(beta[len(beta)-1])
}

// OmitVdf reports whether the VRF selection ticket clears the
// (cheaper) omit-threshold, letting the proposer skip the VDF delay
// entirely.
func OmitVdf(cfg Config, beta []byte) bool {
	return selectionTicket(beta) <= cfg.ThresholdOmit
}

// IsStale reports whether the VRF selection ticket falls outside the
// competitive selection band. A stale proposal always runs at the
// floor difficulty, since the proposer is racing to catch up rather
// than competing for the current period.
func IsStale(cfg Config, beta []byte) bool {
	return selectionTicket(beta) > cfg.ThresholdSelection
}

// Difficulty computes the adjusted exponent a proposer must run the
// VDF at, combining the VRF selection ticket, the omit/stale bands,
// and the configured [min,max] difficulty bounds. An omitted VDF gets
// difficulty 0 (no delay proof required at all); a stale one runs at
// the fixed floor DifficultyStale; otherwise the difficulty is the
// selection ticket modulo the configured [min,max] span.
func Difficulty(cfg Config, beta []byte) uint16 {
	if OmitVdf(cfg, beta) {
		return 0
	}
	if IsStale(cfg, beta) {
		return cfg.DifficultyStale
	}
	span := cfg.DifficultyMax - cfg.DifficultyMin
	if span == 0 {
		return cfg.DifficultyMin
	}
	return cfg.DifficultyMin + selectionTicket(beta)%span
}

// Compute runs the full VRF-gated VDF sortition pipeline for msg (the
// DAG block's pivot hash followed by its big-endian level): it draws the VRF ticket, derives the
// difficulty, and — unless the ticket clears the omit band — executes
// the Wesolowski delay proof at that difficulty. An omitted VDF
// carries an empty Pi/L: there is no delay proof to compute.
func Compute(cfg Config, sk *crypto.PrivateKey, msg []byte) (Solution, error) {
	beta, pi, err := vrf.Prove(sk, msg)
	if err != nil {
		return Solution{}, errs.Wrap(err, "vdf: vrf prove")
	}
	difficulty := Difficulty(cfg, beta)
	var proofPi, proofL []byte
	if difficulty > 0 {
		proofPi, proofL = wesolowskiProve(beta, difficulty)
	}
	return Solution{
		VrfPublicKey: sk.PublicKey(),
		VrfProof:     pi,
		Beta:         beta,
		Pi:           proofPi,
		L:            proofL,
		Difficulty:   difficulty,
	}, nil
}

// Verify recomputes the VRF output and difficulty from sol and checks
// the VRF proof plus, unless the recomputed difficulty is 0 (omitted),
// the Wesolowski delay proof. A difficulty-0 solution verifies with an
// empty Pi/L since no delay proof was ever computed for it.
func Verify(cfg Config, sol Solution, msg []byte) error {
	beta, err := vrf.Verify(sol.VrfPublicKey, msg, sol.VrfProof)
	if err != nil {
		return errs.NewValidation("vdf vrf proof", err)
	}
	wantDifficulty := Difficulty(cfg, beta)
	if wantDifficulty != sol.Difficulty {
		return errs.NewValidation("vdf difficulty mismatch", nil)
	}
	if wantDifficulty == 0 {
		return nil
	}
	if !wesolowskiVerify(beta, sol.Difficulty, sol.Pi, sol.L) {
		return errs.NewValidation("vdf delay proof", nil)
	}
	return nil
}

// wesolowskiProve computes y = g^(2^difficulty) mod N by repeated
// squaring (the sequential delay) and a succinct proof pi that lets a
// verifier check y without repeating the squaring, using Wesolowski's
// construction: pi = g^q mod N where 2^difficulty = q*l + r, and l is
// a prime derived from (g, y) via Fiat-Shamir.
func wesolowskiProve(beta []byte, difficulty uint16) (pi, l []byte) {
	g := groupElement(beta)
	y := powerOfTwoExponent(g, difficulty)

	lPrime := fiatShamirPrime(g, y)

	exp := new(big.Int).Lsh(big.NewInt(1), uint(difficulty))
	q := new(big.Int).Quo(exp, lPrime)
	piVal := new(big.Int).Exp(g, q, N)

	return piVal.Bytes(), lPrime.Bytes()
}

// wesolowskiVerify checks that pi^l * g^r == y mod N, where y is
// recomputed as g^(2^difficulty) mod N and r = 2^difficulty mod l.
// Recomputing y here still costs the full sequential squaring; a
// production verifier would instead accept a claimed y from the
// prover and only check the pi^l*g^r identity, but no separate
// "claimed output" field exists on the wire, so verification keeps
// recomputing y by recomputation.
func wesolowskiVerify(beta []byte, difficulty uint16, pi, l []byte) bool {
	if len(pi) == 0 || len(l) == 0 {
		return false
	}
	g := groupElement(beta)
	y := powerOfTwoExponent(g, difficulty)

	lVal := new(big.Int).SetBytes(l)
	if lVal.Sign() <= 0 {
		return false
	}
	wantL := fiatShamirPrime(g, y)
	if lVal.Cmp(wantL) != 0 {
		return false
	}

	piVal := new(big.Int).SetBytes(pi)
	exp := new(big.Int).Lsh(big.NewInt(1), uint(difficulty))
	r := new(big.Int).Mod(exp, lVal)

	lhs := new(big.Int).Exp(piVal, lVal, N)
	gr := new(big.Int).Exp(g, r, N)
	lhs.Mul(lhs, gr)
	lhs.Mod(lhs, N)

	return lhs.Cmp(y) == 0
}

// groupElement maps the VRF ticket into the RSA group by hashing it
// into a residue mod N (the construction's "hash-to-group" step).
func groupElement(beta []byte) *big.Int {
	h := types.Sha3(beta)
	g := new(big.Int).SetBytes(h[:])
	g.Mod(g, N)
	if g.Sign() == 0 {
		g.SetInt64(2)
	}
	return g
}

// powerOfTwoExponent computes g^(2^difficulty) mod N via difficulty
// sequential squarings; this loop is the actual proof of elapsed time.
func powerOfTwoExponent(g *big.Int, difficulty uint16) *big.Int {
	y := new(big.Int).Set(g)
	for i := uint16(0); i < difficulty; i++ {
		y.Mul(y, y)
		y.Mod(y, N)
	}
	return y
}

// fiatShamirPrime derives the Wesolowski challenge prime l from (g, y)
// via rejection sampling over a sha3-seeded candidate stream.
func fiatShamirPrime(g, y *big.Int) *big.Int {
	seed := append(g.Bytes(), y.Bytes()...)
	for ctr := uint64(0); ; ctr++ {
		buf := append(append([]byte{}, seed...), byte(ctr), byte(ctr>>8), byte(ctr>>16), byte(ctr>>24))
		h := types.Sha3(buf)
		cand := new(big.Int).SetBytes(h[:16])
		cand.SetBit(cand, 0, 1) // force odd
		if cand.ProbablyPrime(20) {
			return cand
		}
	}
}
