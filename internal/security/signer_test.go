package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	payload := map[string]interface{}{
		"daily_return": 1.25,
		"volatility":   14.8,
	}

	signed, err := signer.Sign(payload)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), signed.Signer)
	assert.NotZero(t, signed.SignedAt)

	assert.NoError(t, Verify(signed))
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	signed, err := signer.Sign(map[string]float64{"sharpe_ratio": 1.1})
	require.NoError(t, err)

	signed.Payload = []byte(`{"sharpe_ratio":9.9}`)
	assert.Error(t, Verify(signed))
}

func TestVerify_RejectsWrongSigner(t *testing.T) {
	a, err := NewSigner()
	require.NoError(t, err)
	b, err := NewSigner()
	require.NoError(t, err)

	signed, err := a.Sign(map[string]float64{"win_rate": 60})
	require.NoError(t, err)

	signed.Signer = b.Address()
	assert.Error(t, Verify(signed))
}

func TestVerify_MalformedSignature(t *testing.T) {
	signer, err := NewSigner()
	require.NoError(t, err)

	signed, err := signer.Sign(map[string]float64{"calmar_ratio": 2.0})
	require.NoError(t, err)

	signed.Signature = "zz"
	assert.Error(t, Verify(signed))

	signed.Signature = "00ff"
	assert.Error(t, Verify(signed), "truncated signature must be rejected")
}
