// ABOUTME: Unit tests for authentication context functions
// ABOUTME: Tests identity propagation via context helpers

package auth

import (
	"context"
	"testing"
)

func TestWithIdentity_RoundTrip(t *testing.T) {
	identity := Identity{UserID: "user-123", CompanyID: "acme"}
	ctx := WithIdentity(context.Background(), identity)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("FromContext() ok = false, want true")
	}
	if got != identity {
		t.Errorf("FromContext() = %+v, want %+v", got, identity)
	}
}

func TestFromContext_Missing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("FromContext() ok = true for empty context, want false")
	}
}

func TestMustFromContext_Present(t *testing.T) {
	identity := Identity{UserID: "user-123", CompanyID: "acme"}
	ctx := WithIdentity(context.Background(), identity)

	got := MustFromContext(ctx)
	if got != identity {
		t.Errorf("MustFromContext() = %+v, want %+v", got, identity)
	}
}

func TestMustFromContext_PanicsWhenMissing(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustFromContext() did not panic for empty context")
		}
	}()
	MustFromContext(context.Background())
}

func TestWithIdentity_Overwrite(t *testing.T) {
	ctx := WithIdentity(context.Background(), Identity{UserID: "first", CompanyID: "acme"})
	ctx = WithIdentity(ctx, Identity{UserID: "second", CompanyID: "globex"})

	got := MustFromContext(ctx)
	if got.UserID != "second" || got.CompanyID != "globex" {
		t.Errorf("MustFromContext() = %+v, want second/globex", got)
	}
}
