package catalog

import "testing"

func TestMatchPattern_SubstringFallback(t *testing.T) {
	if !MatchPattern("api_key", "key") {
		t.Error("expected substring match")
	}
	if MatchPattern("module", "key") {
		t.Error("expected no match")
	}
}

func TestMatchPattern_GlobMatch(t *testing.T) {
	if !MatchPattern("ssn_field", "ssn_*") {
		t.Error("expected glob match")
	}
	if MatchPattern("field_ssn", "ssn_*") {
		t.Error("expected no glob match when ssn_ isn't a prefix")
	}
}

func TestMatchPattern_CaseInsensitive(t *testing.T) {
	if !MatchPattern("API_KEY", "api_key") {
		t.Error("expected case-insensitive match")
	}
}

func TestMatchAny(t *testing.T) {
	patterns := []string{"password", "secret", "token"}
	if !MatchAny("auth_token", patterns) {
		t.Error("expected match on token")
	}
	if MatchAny("product", patterns) {
		t.Error("expected no match")
	}
}

func TestCheckKey_ForbiddenTakesPrecedence(t *testing.T) {
	result := CheckKey("api_secret", []string{"secret"}, []string{"secret"})
	if result.Passed {
		t.Error("expected forbidden match to fail the check")
	}
}

func TestCheckKey_SensitivePassesWithReason(t *testing.T) {
	result := CheckKey("password_hint", []string{"password"}, nil)
	if !result.Passed {
		t.Error("expected sensitive-only match to still pass")
	}
	if result.Reason == "" {
		t.Error("expected a reason to be set for a sensitive match")
	}
}

func TestCheckKey_NoMatch(t *testing.T) {
	result := CheckKey("module", []string{"password"}, []string{"ssn"})
	if !result.Passed || result.Reason != "" {
		t.Errorf("CheckKey() = %+v, want passed with no reason", result)
	}
}
