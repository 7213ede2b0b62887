package secretstore

import "testing"

func TestMaskShortSecret(t *testing.T) {
	if Mask("abc") != "****" {
		t.Fatalf("got %q", Mask("abc"))
	}
}

func TestMaskPreservesLastFour(t *testing.T) {
	got := Mask("sk-1234567890abcdef")
	if got != "****...cdef" {
		t.Fatalf("got %q", got)
	}
}

func TestGrantPlaintextConsentTransitionsFromPending(t *testing.T) {
	s := &SecretStorage{state: PlaintextPending}
	s.GrantPlaintextConsent()
	if s.State() != PlaintextConsented {
		t.Fatalf("got %v", s.State())
	}
}

func TestGrantPlaintextConsentNoopWhenKeyringAvailable(t *testing.T) {
	s := &SecretStorage{state: KeyringAvailable}
	s.GrantPlaintextConsent()
	if s.State() != KeyringAvailable {
		t.Fatalf("got %v", s.State())
	}
}

func TestSetFailsWithoutKeyring(t *testing.T) {
	s := &SecretStorage{state: PlaintextPending}
	if err := s.SetAPIKey("openai", "sk-test"); err == nil {
		t.Fatalf("expected error when keyring unavailable")
	}
}
