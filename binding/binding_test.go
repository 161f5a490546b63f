package binding

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zkpayroll/go-payroll-settlement/codec"
)

func TestLinear(t *testing.T) {
	b := Linear{}
	cm, err := b.Commitment(big.NewInt(5000), big.NewInt(123))
	require.NoError(t, err)
	require.Equal(t, "5861", cm.String())

	n, err := b.Nullifier(cm, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "76194", n.String())

	r, err := b.RecipientHash(big.NewInt(42), big.NewInt(123))
	require.NoError(t, err)
	require.Equal(t, "3830", r.String())

	// wraps around the modulus
	top := new(big.Int).Sub(codec.R, big.NewInt(1))
	cm, err = b.Commitment(top, big.NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "6", cm.String())
}

func TestBindingsAreDeterministic(t *testing.T) {
	for _, name := range []string{NameLinear, NameMiMC, NamePoseidon} {
		t.Run(name, func(t *testing.T) {
			b, err := ByName(name)
			require.NoError(t, err)

			c1, err := b.Commitment(big.NewInt(5000), big.NewInt(123))
			require.NoError(t, err)
			c2, err := b.Commitment(big.NewInt(5000), big.NewInt(123))
			require.NoError(t, err)
			require.Zero(t, c1.Cmp(c2))
			require.Equal(t, -1, c1.Cmp(codec.R))

			c3, err := b.Commitment(big.NewInt(5001), big.NewInt(123))
			require.NoError(t, err)
			require.NotZero(t, c1.Cmp(c3))

			_, err = b.Commitment(codec.R, big.NewInt(1))
			require.ErrorIs(t, err, codec.ErrFieldOverflow)
		})
	}
}

func TestHashesBindTheNonce(t *testing.T) {
	for _, b := range []Binding{MiMC{}, Poseidon{}} {
		n1, err := b.Nullifier(big.NewInt(5861), big.NewInt(1))
		require.NoError(t, err)
		n2, err := b.Nullifier(big.NewInt(5861), big.NewInt(2))
		require.NoError(t, err)
		require.NotZero(t, n1.Cmp(n2))
	}
}

func TestByNameUnknown(t *testing.T) {
	_, err := ByName("sha256")
	require.Error(t, err)
}
