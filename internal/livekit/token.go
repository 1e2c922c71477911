package livekit

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL matches the LiveKit default of 6 hours
const DefaultTokenTTL = 6 * time.Hour

// meetURL is the hosted test client used for manual agent testing
const meetURL = "https://meet.livekit.io/custom"

// VideoGrant is the LiveKit video grant embedded in an access token
type VideoGrant struct {
	RoomJoin   bool   `json:"roomJoin,omitempty"`
	Room       string `json:"room,omitempty"`
	RoomList   bool   `json:"roomList,omitempty"`
	RoomAdmin  bool   `json:"roomAdmin,omitempty"`
	RoomCreate bool   `json:"roomCreate,omitempty"`
}

// Claims is the JWT claim set LiveKit expects
type Claims struct {
	jwt.RegisteredClaims
	Name  string      `json:"name,omitempty"`
	Video *VideoGrant `json:"video,omitempty"`
}

// AccessToken builds a signed LiveKit access token
type AccessToken struct {
	apiKey    string
	apiSecret string
	identity  string
	name      string
	ttl       time.Duration
	grant     *VideoGrant
}

// NewAccessToken creates a token builder for the given API key pair
func NewAccessToken(apiKey, apiSecret string) *AccessToken {
	return &AccessToken{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		ttl:       DefaultTokenTTL,
	}
}

// WithIdentity sets the participant identity
func (t *AccessToken) WithIdentity(identity string) *AccessToken {
	t.identity = identity
	return t
}

// WithName sets the participant display name
func (t *AccessToken) WithName(name string) *AccessToken {
	t.name = name
	return t
}

// WithGrants sets the video grant
func (t *AccessToken) WithGrants(grant VideoGrant) *AccessToken {
	t.grant = &grant
	return t
}

// WithTTL sets the token lifetime
func (t *AccessToken) WithTTL(ttl time.Duration) *AccessToken {
	t.ttl = ttl
	return t
}

// ToJWT signs and serializes the token
func (t *AccessToken) ToJWT() (string, error) {
	if t.apiKey == "" || t.apiSecret == "" {
		return "", fmt.Errorf("api key and secret are required")
	}
	if t.identity == "" {
		return "", fmt.Errorf("token identity is required")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.apiKey,
			Subject:   t.identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
		Name:  t.name,
		Video: t.grant,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(t.apiSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// JoinURL builds a meet.livekit.io link that joins the room with the token
func JoinURL(livekitURL, token string) string {
	q := url.Values{}
	q.Set("liveKitUrl", livekitURL)
	q.Set("token", token)
	return meetURL + "?" + q.Encode()
}

// HTTPURL rewrites a wss:// LiveKit URL to its https:// API form
func HTTPURL(livekitURL string) string {
	switch {
	case strings.HasPrefix(livekitURL, "wss://"):
		return "https://" + strings.TrimPrefix(livekitURL, "wss://")
	case strings.HasPrefix(livekitURL, "ws://"):
		return "http://" + strings.TrimPrefix(livekitURL, "ws://")
	default:
		return livekitURL
	}
}
