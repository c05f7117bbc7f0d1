package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Taraxa-project/taraxa-node-sub003/internal/types"
)

func TestSignAndRecover(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := types.Sha3([]byte("hello taraxa"))
	sig, err := Sign(sk, digest)
	require.NoError(t, err)

	pub, addr, ok := Recover(sig, digest)
	require.True(t, ok)
	require.Equal(t, sk.PublicKey(), pub)
	require.Equal(t, Address(sk.PublicKey()), addr)
}

func TestVerifyRejectsWrongAddress(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)
	other, err := GeneratePrivateKey()
	require.NoError(t, err)

	digest := types.Sha3([]byte("payload"))
	sig, err := Sign(sk, digest)
	require.NoError(t, err)

	require.True(t, Verify(sig, digest, Address(sk.PublicKey())))
	require.False(t, Verify(sig, digest, Address(other.PublicKey())))
}

func TestVerifyRejectsTamperedDigest(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)

	sig, err := Sign(sk, types.Sha3([]byte("original")))
	require.NoError(t, err)

	require.False(t, Verify(sig, types.Sha3([]byte("tampered")), Address(sk.PublicKey())))
}

func TestPrivateKeyRoundTripBytes(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)

	restored, err := PrivateKeyFromBytes(sk.Bytes())
	require.NoError(t, err)
	require.Equal(t, sk.PublicKey(), restored.PublicKey())
}

func TestPublicKeyToECDSARoundTrip(t *testing.T) {
	sk, err := GeneratePrivateKey()
	require.NoError(t, err)

	pub := sk.PublicKey()
	ecdsaPub, err := PublicKeyToECDSA(pub)
	require.NoError(t, err)
	require.NotNil(t, ecdsaPub)
	require.Equal(t, sk.ECDSA().PublicKey, *ecdsaPub)
}
