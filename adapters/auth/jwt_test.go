package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/artpar/datagate/adapters/auth"
)

func TestGenerateValidateRoundTrip(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	token, expires, err := svc.GenerateToken("alice", "operator")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if time.Until(expires) < 59*time.Minute {
		t.Errorf("expiry %v too soon", expires)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.Principal() != "alice" {
		t.Errorf("Principal() = %q, want alice", claims.Principal())
	}
	if claims.PrincipalClass != "operator" {
		t.Errorf("PrincipalClass = %q, want operator", claims.PrincipalClass)
	}
}

func TestValidateTokenRejections(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)

	t.Run("wrong secret", func(t *testing.T) {
		other := auth.NewTokenService("other-secret", time.Hour)
		token, _, err := other.GenerateToken("alice", "operator")
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if _, err := svc.ValidateToken(token); err == nil {
			t.Error("ValidateToken() accepted token signed with another secret")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := svc.ValidateToken("not.a.token"); err == nil {
			t.Error("ValidateToken() accepted garbage")
		}
	})

	t.Run("expired", func(t *testing.T) {
		short := auth.NewTokenService("test-secret", time.Millisecond)
		token, _, err := short.GenerateToken("alice", "operator")
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		time.Sleep(10 * time.Millisecond)
		if _, err := short.ValidateToken(token); err == nil {
			t.Error("ValidateToken() accepted expired token")
		}
	})

	t.Run("missing subject", func(t *testing.T) {
		token, _, err := svc.GenerateToken("", "operator")
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if _, err := svc.ValidateToken(token); err == nil {
			t.Error("ValidateToken() accepted token without subject")
		}
	})

	t.Run("missing class", func(t *testing.T) {
		token, _, err := svc.GenerateToken("alice", "")
		if err != nil {
			t.Fatalf("GenerateToken() error = %v", err)
		}
		if _, err := svc.ValidateToken(token); err == nil {
			t.Error("ValidateToken() accepted token without principal class")
		}
	})
}

func TestFromAuthorizationHeader(t *testing.T) {
	svc := auth.NewTokenService("test-secret", time.Hour)
	token, _, err := svc.GenerateToken("alice", "operator")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	claims, err := svc.FromAuthorizationHeader("Bearer " + token)
	if err != nil {
		t.Fatalf("FromAuthorizationHeader() error = %v", err)
	}
	if claims.Principal() != "alice" {
		t.Errorf("Principal() = %q", claims.Principal())
	}

	for _, header := range []string{"", token, "Basic " + token} {
		if _, err := svc.FromAuthorizationHeader(header); err == nil {
			t.Errorf("FromAuthorizationHeader(%q) accepted non-bearer header", header)
		}
	}
}

func TestRandomSecretPerService(t *testing.T) {
	a := auth.NewTokenService("", time.Hour)
	b := auth.NewTokenService("", time.Hour)

	token, _, err := a.GenerateToken("alice", "operator")
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	if _, err := a.ValidateToken(token); err != nil {
		t.Errorf("same service rejected its own token: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("token accepted across services with independent random secrets")
	}
	if !strings.Contains(token, ".") {
		t.Errorf("token %q does not look like a JWT", token)
	}
}
