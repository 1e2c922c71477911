package livekit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// adminTokenTTL bounds the lifetime of server API tokens
const adminTokenTTL = 10 * time.Minute

// Room is a LiveKit room as returned by the RoomService API
type Room struct {
	SID             string `json:"sid"`
	Name            string `json:"name"`
	NumParticipants uint32 `json:"numParticipants"`
	CreationTime    int64  `json:"creationTime,string"`
	Metadata        string `json:"metadata,omitempty"`
}

// Participant is a room participant as returned by the RoomService API
type Participant struct {
	SID      string `json:"sid"`
	Identity string `json:"identity"`
	Name     string `json:"name,omitempty"`
	State    string `json:"state,omitempty"`
	Kind     string `json:"kind,omitempty"`
}

// IsAgent reports whether a participant looks like a deployed agent
func (p Participant) IsAgent() bool {
	if p.Kind == "AGENT" {
		return true
	}
	identity := strings.ToLower(p.Identity)
	return strings.Contains(identity, "agent") || strings.Contains(identity, "bot")
}

// Client talks to the LiveKit server API (Twirp over HTTP)
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client (used in tests)
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// NewClient creates a server API client. livekitURL may be the wss:// URL
// from the environment, it is rewritten to https:// for API calls.
func NewClient(livekitURL, apiKey, apiSecret string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(HTTPURL(livekitURL), "/"),
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListRooms returns all active rooms
func (c *Client) ListRooms(ctx context.Context) ([]Room, error) {
	var resp struct {
		Rooms []Room `json:"rooms"`
	}
	if err := c.call(ctx, "ListRooms", map[string]interface{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// ListParticipants returns the participants of a room
func (c *Client) ListParticipants(ctx context.Context, room string) ([]Participant, error) {
	var resp struct {
		Participants []Participant `json:"participants"`
	}
	req := map[string]interface{}{"room": room}
	if err := c.call(ctx, "ListParticipants", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to list participants in %s: %w", room, err)
	}
	return resp.Participants, nil
}

// RemoveParticipant kicks a participant from a room
func (c *Client) RemoveParticipant(ctx context.Context, room, identity string) error {
	req := map[string]interface{}{"room": room, "identity": identity}
	if err := c.call(ctx, "RemoveParticipant", req, &struct{}{}); err != nil {
		return fmt.Errorf("failed to remove %s from %s: %w", identity, room, err)
	}
	return nil
}

// DeleteRoom closes a room and disconnects everyone in it
func (c *Client) DeleteRoom(ctx context.Context, room string) error {
	req := map[string]interface{}{"room": room}
	if err := c.call(ctx, "DeleteRoom", req, &struct{}{}); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", room, err)
	}
	return nil
}

// RemoveAgents removes every agent participant from every room and returns
// "room/identity" labels for what was removed
func (c *Client) RemoveAgents(ctx context.Context) ([]string, error) {
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, room := range rooms {
		participants, err := c.ListParticipants(ctx, room.Name)
		if err != nil {
			return removed, err
		}
		for _, p := range participants {
			if !p.IsAgent() {
				continue
			}
			if err := c.RemoveParticipant(ctx, room.Name, p.Identity); err != nil {
				return removed, err
			}
			removed = append(removed, room.Name+"/"+p.Identity)
		}
	}
	return removed, nil
}

// DeleteEmptyRooms deletes rooms with no participants and returns their names
func (c *Client) DeleteEmptyRooms(ctx context.Context) ([]string, error) {
	rooms, err := c.ListRooms(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, room := range rooms {
		if room.NumParticipants > 0 {
			continue
		}
		if err := c.DeleteRoom(ctx, room.Name); err != nil {
			return deleted, err
		}
		deleted = append(deleted, room.Name)
	}
	return deleted, nil
}

// call issues one Twirp request against the RoomService
func (c *Client) call(ctx context.Context, method string, reqBody, respBody interface{}) error {
	token, err := NewAccessToken(c.apiKey, c.apiSecret).
		WithIdentity("lkagent-admin").
		WithGrants(VideoGrant{RoomList: true, RoomAdmin: true, RoomCreate: true}).
		WithTTL(adminTokenTTL).
		ToJWT()
	if err != nil {
		return fmt.Errorf("failed to build admin token: %w", err)
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	url := c.baseURL + "/twirp/livekit.RoomService/" + method
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
