package livekit

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestAccessTokenClaims(t *testing.T) {
	signed, err := NewAccessToken("APIkey123", "secret456").
		WithIdentity("test-user").
		WithName("Test User").
		WithGrants(VideoGrant{RoomJoin: true, Room: "mcp-test-room"}).
		ToJWT()
	if err != nil {
		t.Fatalf("ToJWT failed: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(signed, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return []byte("secret456"), nil
	})
	if err != nil {
		t.Fatalf("token should verify with the API secret: %v", err)
	}

	claims := parsed.Claims.(*Claims)
	if claims.Issuer != "APIkey123" {
		t.Errorf("issuer should be the API key, got %s", claims.Issuer)
	}
	if claims.Subject != "test-user" {
		t.Errorf("subject should be the identity, got %s", claims.Subject)
	}
	if claims.Name != "Test User" {
		t.Errorf("name claim wrong: %s", claims.Name)
	}
	if claims.Video == nil || !claims.Video.RoomJoin || claims.Video.Room != "mcp-test-room" {
		t.Errorf("video grant wrong: %+v", claims.Video)
	}

	exp, _ := claims.GetExpirationTime()
	ttl := time.Until(exp.Time)
	if ttl < 5*time.Hour || ttl > 7*time.Hour {
		t.Errorf("default TTL should be about 6h, got %v", ttl)
	}
}

func TestAccessTokenRequiresIdentity(t *testing.T) {
	if _, err := NewAccessToken("key", "secret").ToJWT(); err == nil {
		t.Error("ToJWT should fail without an identity")
	}
}

func TestAccessTokenRejectedWithWrongSecret(t *testing.T) {
	signed, err := NewAccessToken("key", "right-secret").
		WithIdentity("user").
		ToJWT()
	if err != nil {
		t.Fatalf("ToJWT failed: %v", err)
	}

	_, err = jwt.ParseWithClaims(signed, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		return []byte("wrong-secret"), nil
	})
	if err == nil {
		t.Error("token should not verify with the wrong secret")
	}
}

func TestJoinURL(t *testing.T) {
	url := JoinURL("wss://example.livekit.cloud", "tok.en.value")

	if !strings.HasPrefix(url, "https://meet.livekit.io/custom?") {
		t.Errorf("unexpected join URL base: %s", url)
	}
	if !strings.Contains(url, "liveKitUrl=wss%3A%2F%2Fexample.livekit.cloud") {
		t.Errorf("join URL should carry the LiveKit URL: %s", url)
	}
	if !strings.Contains(url, "token=tok.en.value") {
		t.Errorf("join URL should carry the token: %s", url)
	}
}

func TestHTTPURL(t *testing.T) {
	cases := map[string]string{
		"wss://proj.livekit.cloud": "https://proj.livekit.cloud",
		"ws://localhost:7880":      "http://localhost:7880",
		"https://already.http":     "https://already.http",
	}
	for in, want := range cases {
		if got := HTTPURL(in); got != want {
			t.Errorf("HTTPURL(%q) = %q, want %q", in, got, want)
		}
	}
}
