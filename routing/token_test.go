package routing

import "testing"

func TestTokenValidatorRoundTrip(t *testing.T) {
	v, err := NewTokenValidator()
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}
	addr := testEndpoint(6881)
	tok := v.GenerateToken(addr)
	if !v.VerifyToken(addr, tok[:]) {
		t.Fatalf("token minted for addr did not verify against the same addr")
	}
}

func TestTokenValidatorRejectsWrongAddr(t *testing.T) {
	v, err := NewTokenValidator()
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}
	tok := v.GenerateToken(testEndpoint(1))
	if v.VerifyToken(testEndpoint(2), tok[:]) {
		t.Fatalf("token minted for one addr must not verify for another")
	}
}

func TestTokenValidatorValidAfterOneRotation(t *testing.T) {
	v, err := NewTokenValidator()
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}
	addr := testEndpoint(6881)
	tok := v.GenerateToken(addr)

	if err := v.RotateTokens(); err != nil {
		t.Fatalf("RotateTokens: %v", err)
	}
	if !v.VerifyToken(addr, tok[:]) {
		t.Fatalf("token must still verify through one rotation")
	}
}

func TestTokenValidatorInvalidAfterTwoRotations(t *testing.T) {
	v, err := NewTokenValidator()
	if err != nil {
		t.Fatalf("NewTokenValidator: %v", err)
	}
	addr := testEndpoint(6881)
	tok := v.GenerateToken(addr)

	if err := v.RotateTokens(); err != nil {
		t.Fatalf("RotateTokens: %v", err)
	}
	if err := v.RotateTokens(); err != nil {
		t.Fatalf("RotateTokens: %v", err)
	}
	if v.VerifyToken(addr, tok[:]) {
		t.Fatalf("token must stop verifying after the second rotation")
	}
}
