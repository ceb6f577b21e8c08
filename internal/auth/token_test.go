package auth

import (
	"context"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret")

	token, err := tm.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	userID, err := tm.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != 42 {
		t.Errorf("user id = %d, want 42", userID)
	}
}

func TestTokenWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a").Issue(1)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := NewTokenManager("secret-b").Verify(token); err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestTokenGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret")
	if _, err := tm.Verify("not-a-token"); err == nil {
		t.Fatal("expected verification to fail for garbage input")
	}
}

func TestAuthContext(t *testing.T) {
	hid := int64(7)
	ctx := WithAuth(context.Background(), AuthContext{UserID: 3, HouseholdID: &hid})

	if got := UserID(ctx); got != 3 {
		t.Errorf("UserID = %d, want 3", got)
	}
	if got := HouseholdID(ctx); got != 7 {
		t.Errorf("HouseholdID = %d, want 7", got)
	}
}

func TestAuthContextMissing(t *testing.T) {
	ctx := context.Background()
	if got := UserID(ctx); got != 0 {
		t.Errorf("UserID = %d, want 0", got)
	}
	if got := HouseholdID(ctx); got != 0 {
		t.Errorf("HouseholdID = %d, want 0", got)
	}
}

func TestAuthContextUnaffiliated(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{UserID: 3})
	if got := HouseholdID(ctx); got != 0 {
		t.Errorf("HouseholdID = %d, want 0 for unaffiliated user", got)
	}
}
