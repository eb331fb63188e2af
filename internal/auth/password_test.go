package auth

import "testing"

func TestVerifyPassword_Match(t *testing.T) {
	hash := HashPassword("correct-horse-battery-staple")
	ok, err := VerifyPassword("correct-horse-battery-staple", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error: %v", err)
	}
	if !ok {
		t.Error("expected match")
	}
}

func TestVerifyPassword_Mismatch(t *testing.T) {
	hash := HashPassword("correct-horse-battery-staple")
	ok, err := VerifyPassword("wrong-secret", hash)
	if err != nil {
		t.Fatalf("VerifyPassword() error: %v", err)
	}
	if ok {
		t.Error("expected mismatch")
	}
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	_, err := VerifyPassword("anything", "not-a-valid-hash")
	if err == nil {
		t.Fatal("expected error for malformed hash")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("error type = %T, want *ConfigError", err)
	}
}

func TestVerifyPassword_UppercaseHashRejected(t *testing.T) {
	hash := HashPassword("secret")
	upper := make([]byte, len(hash))
	for i, c := range []byte(hash) {
		if c >= 'a' && c <= 'f' {
			c -= 32
		}
		upper[i] = c
	}
	_, err := VerifyPassword("secret", string(upper))
	if err == nil {
		t.Fatal("expected error for uppercase hash")
	}
}
