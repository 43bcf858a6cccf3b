package providers

import "testing"

func TestComputeS256Challenge(t *testing.T) {
	// Reference vector from RFC 7636 appendix B.
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	want := "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM"
	if got := ComputeS256Challenge(verifier); got != want {
		t.Fatalf("ComputeS256Challenge() = %v, want %v", got, want)
	}
}

func TestGenerateCodeVerifier(t *testing.T) {
	first, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier() error = %v", err)
	}
	if len(first) != 64 {
		t.Errorf("verifier length = %d, want 64", len(first))
	}

	second, err := GenerateCodeVerifier()
	if err != nil {
		t.Fatalf("GenerateCodeVerifier() error = %v", err)
	}
	if first == second {
		t.Error("expected distinct verifiers across calls")
	}
}
