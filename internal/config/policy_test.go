package config

import "testing"

func TestDialoguePolicy_ResolveProfile_NoName(t *testing.T) {
	base := DefaultConfig().Dialogue

	resolved, err := base.ResolveProfile("")
	if err != nil {
		t.Fatalf("ResolveProfile(\"\") error: %v", err)
	}
	if resolved.LengthPolicy.MinChars != base.LengthPolicy.MinChars {
		t.Errorf("MinChars = %d, want unchanged %d", resolved.LengthPolicy.MinChars, base.LengthPolicy.MinChars)
	}
}

func TestDialoguePolicy_ResolveProfile_NotFound(t *testing.T) {
	base := DefaultConfig().Dialogue

	_, err := base.ResolveProfile("does-not-exist")
	if err == nil {
		t.Fatal("ResolveProfile with unknown name should error")
	}
	var notFound *ProfileNotFoundError
	if pe, ok := err.(*ProfileNotFoundError); !ok {
		t.Fatalf("error type = %T, want *ProfileNotFoundError", err)
	} else {
		notFound = pe
	}
	if notFound.Profile != "does-not-exist" {
		t.Errorf("Profile = %q, want %q", notFound.Profile, "does-not-exist")
	}
}

func TestDialoguePolicy_ResolveProfile_OverlayReplacesFiniteFields(t *testing.T) {
	base := DefaultConfig().Dialogue

	resolved, err := base.ResolveProfile("system-maintainer")
	if err != nil {
		t.Fatalf("ResolveProfile() error: %v", err)
	}

	if resolved.LengthPolicy.MinChars != 4 {
		t.Errorf("MinChars = %d, want overlay value 4", resolved.LengthPolicy.MinChars)
	}
	if resolved.LengthPolicy.MinSignificantTokens != 2 {
		t.Errorf("MinSignificantTokens = %d, want overlay value 2", resolved.LengthPolicy.MinSignificantTokens)
	}
	// MaxChars was not set in the overlay (zero value), so it must inherit
	// the base value rather than being zeroed out.
	if resolved.LengthPolicy.MaxChars != base.LengthPolicy.MaxChars {
		t.Errorf("MaxChars = %d, want inherited base value %d", resolved.LengthPolicy.MaxChars, base.LengthPolicy.MaxChars)
	}
}

func TestDialoguePolicy_ResolveProfile_ListsAppendAndDedupe(t *testing.T) {
	base := DefaultConfig().Dialogue
	base.Profiles["dup-test"] = DialogueProfileOverlay{
		DenyPatterns: append(append([]string{}, base.DenyPatterns...), "extra-pattern"),
	}

	resolved, err := base.ResolveProfile("dup-test")
	if err != nil {
		t.Fatalf("ResolveProfile() error: %v", err)
	}

	want := len(base.DenyPatterns) + 1
	if len(resolved.DenyPatterns) != want {
		t.Errorf("DenyPatterns length = %d, want %d (appended + deduped)", len(resolved.DenyPatterns), want)
	}
	if resolved.DenyPatterns[len(resolved.DenyPatterns)-1] != "extra-pattern" {
		t.Errorf("last DenyPatterns entry = %q, want %q", resolved.DenyPatterns[len(resolved.DenyPatterns)-1], "extra-pattern")
	}
}
