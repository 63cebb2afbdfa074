package auth

import (
	"context"
	"testing"
)

func TestWithActorAndFromContext(t *testing.T) {
	ac := Context{
		UserID:           1,
		Username:         "reporter",
		IsAdmin:          true,
		IsDepartmentUser: false,
		Department:       "",
	}

	ctx := WithActor(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected actor in context")
	}
	if got.UserID != 1 {
		t.Errorf("UserID = %d, want 1", got.UserID)
	}
	if got.Username != "reporter" {
		t.Errorf("Username = %q, want %q", got.Username, "reporter")
	}
	if !got.IsAdmin {
		t.Error("IsAdmin = false, want true")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing actor")
	}
}

func TestUserID(t *testing.T) {
	ctx := WithActor(context.Background(), Context{UserID: 7})
	if UserID(ctx) != 7 {
		t.Errorf("UserID = %d, want 7", UserID(ctx))
	}
}

func TestUserIDMissing(t *testing.T) {
	if UserID(context.Background()) != 0 {
		t.Error("expected 0 for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	ctx := WithActor(context.Background(), Context{IsAdmin: true})
	if !IsAdmin(ctx) {
		t.Error("expected IsAdmin = true")
	}
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}
