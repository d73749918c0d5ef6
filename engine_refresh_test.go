package authstack

import (
	"context"
	"errors"
	"testing"
)

func deviceCtx(ua, ip string) context.Context {
	ctx := WithUserAgent(context.Background(), ua)
	return WithClientIP(ctx, ip)
}

func TestRefreshRotation(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := deviceCtx("firefox", "10.0.0.1")
	env.registerVerified(t, "rot@example.com", "passwordpassword")

	bundle, err := env.engine.Login(ctx, "rot@example.com", "passwordpassword")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	seen := map[string]bool{bundle.RefreshToken: true}
	token := bundle.RefreshToken
	for i := 0; i < 5; i++ {
		next, err := env.engine.Refresh(ctx, token)
		if err != nil {
			t.Fatalf("rotation %d: %v", i, err)
		}
		if seen[next.RefreshToken] {
			t.Fatalf("rotation %d reissued a token", i)
		}
		seen[next.RefreshToken] = true

		// The consumed token is dead.
		if _, err := env.engine.Refresh(ctx, token); !errors.Is(err, ErrTokenInvalid) {
			t.Fatalf("stale token after rotation %d = %v, want ErrTokenInvalid", i, err)
		}
		token = next.RefreshToken
	}
}

func TestRefreshDeviceMismatchRevokes(t *testing.T) {
	env := newTestEngine(t, nil)
	env.registerVerified(t, "dev@example.com", "passwordpassword")

	phone := deviceCtx("iphone", "10.0.0.1")
	bundle, err := env.engine.Login(phone, "dev@example.com", "passwordpassword")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	laptop := deviceCtx("chrome", "192.168.1.5")
	if _, err := env.engine.Refresh(laptop, bundle.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("foreign device refresh = %v, want ErrTokenInvalid", err)
	}

	// The mismatch burned the session for the real device too.
	if _, err := env.engine.Refresh(phone, bundle.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("original device after mismatch = %v, want ErrTokenInvalid", err)
	}
}

func TestRefreshDisabledAccount(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := deviceCtx("firefox", "10.0.0.1")
	env.registerVerified(t, "off@example.com", "passwordpassword")

	bundle, err := env.engine.Login(ctx, "off@example.com", "passwordpassword")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	u := env.store.get(t, "off@example.com")
	u.Active = false
	if err := env.store.Save(ctx, u); err != nil {
		t.Fatal(err)
	}

	if _, err := env.engine.Refresh(ctx, bundle.RefreshToken); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("refresh for disabled account = %v, want ErrAccountDisabled", err)
	}
	// The session was revoked on the way out.
	if _, err := env.engine.Refresh(ctx, bundle.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("retry after revocation = %v, want ErrTokenInvalid", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := deviceCtx("firefox", "10.0.0.1")
	env.registerVerified(t, "out@example.com", "passwordpassword")

	bundle, err := env.engine.Login(ctx, "out@example.com", "passwordpassword")
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if err := env.engine.Logout(ctx, bundle.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := env.engine.Logout(ctx, bundle.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, bundle.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("refresh after logout = %v, want ErrTokenInvalid", err)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEngine(t, nil)
	user := env.registerVerified(t, "all@example.com", "passwordpassword")

	devices := []context.Context{
		deviceCtx("iphone", "10.0.0.1"),
		deviceCtx("chrome", "192.168.1.5"),
		deviceCtx("curl", "172.16.0.9"),
	}
	tokens := make([]string, 0, len(devices))
	for _, ctx := range devices {
		b, err := env.engine.Login(ctx, "all@example.com", "passwordpassword")
		if err != nil {
			t.Fatalf("login: %v", err)
		}
		tokens = append(tokens, b.RefreshToken)
	}

	n, err := env.engine.ActiveSessionCount(context.Background(), user.PublicID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != len(devices) {
		t.Fatalf("active sessions = %d, want %d", n, len(devices))
	}

	revoked, err := env.engine.RevokeAllSessions(context.Background(), user.PublicID)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if revoked != len(devices) {
		t.Errorf("revoked = %d, want %d", revoked, len(devices))
	}
	for i, tok := range tokens {
		if _, err := env.engine.Refresh(devices[i], tok); !errors.Is(err, ErrTokenInvalid) {
			t.Errorf("token %d survived revocation: %v", i, err)
		}
	}
}

func TestOneSessionPerDevice(t *testing.T) {
	env := newTestEngine(t, nil)
	ctx := deviceCtx("firefox", "10.0.0.1")
	user := env.registerVerified(t, "one@example.com", "passwordpassword")

	first, err := env.engine.Login(ctx, "one@example.com", "passwordpassword")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := env.engine.Login(ctx, "one@example.com", "passwordpassword")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}

	n, err := env.engine.ActiveSessionCount(context.Background(), user.PublicID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("active sessions = %d, want 1", n)
	}

	if _, err := env.engine.Refresh(ctx, first.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("first session survived relogin: %v", err)
	}
	if _, err := env.engine.Refresh(ctx, second.RefreshToken); err != nil {
		t.Errorf("second session: %v", err)
	}
}
