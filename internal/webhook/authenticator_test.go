package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	body := []byte(`{"applicantId":"a1","applicantStatus":"approved","reviewStatus":"completed"}`)
	secret := "webhook-secret"

	sig := ComputeSignature(body, secret)
	assert.True(t, VerifySignature(body, sig, secret))
}

func TestVerifySignatureRejectsMutatedBody(t *testing.T) {
	body := []byte(`{"applicantId":"a1","reviewStatus":"completed"}`)
	secret := "webhook-secret"
	sig := ComputeSignature(body, secret)

	for i := range body {
		mutated := make([]byte, len(body))
		copy(mutated, body)
		mutated[i] ^= 0x01
		assert.False(t, VerifySignature(mutated, sig, secret), "bit flip at byte %d must fail", i)
	}
}

func TestVerifySignatureRejectsMutatedSignature(t *testing.T) {
	body := []byte(`{"applicantId":"a1"}`)
	secret := "webhook-secret"
	sig := ComputeSignature(body, secret)

	mutated := []byte(sig)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}

	assert.False(t, VerifySignature(body, string(mutated), secret))
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{"applicantId":"a1"}`)
	sig := ComputeSignature(body, "secret-a")
	assert.False(t, VerifySignature(body, sig, "secret-b"))
}

func TestVerifySignatureEmptyInputs(t *testing.T) {
	assert.False(t, VerifySignature(nil, "abc", "secret"))
	assert.False(t, VerifySignature([]byte("body"), "", "secret"))
	assert.False(t, VerifySignature([]byte("body"), "abc", ""))
}
