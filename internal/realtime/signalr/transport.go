// Package signalr connects the comment channel to an ASP.NET Core SignalR
// hub using the JSON hub protocol over websockets.
package signalr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/huddle/internal/realtime"
)

// Defaults for Transport fields left zero.
const (
	DefaultKeepAlive        = 15 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
	readLimit               = 1 << 20
)

// ErrHandshake is returned when the hub rejects the protocol handshake.
var ErrHandshake = errors.New("hub handshake failed")

// Transport dials a SignalR hub. The negotiate step is skipped, so the hub
// must accept direct websocket connections.
type Transport struct {
	URL        string
	Tokens     realtime.TokenProvider
	HTTPClient *http.Client
	Log        zerolog.Logger

	KeepAlive        time.Duration
	HandshakeTimeout time.Duration
}

func New(hubURL string, tokens realtime.TokenProvider, log zerolog.Logger) *Transport {
	return &Transport{
		URL:    hubURL,
		Tokens: tokens,
		Log:    log,
	}
}

// Dial connects, authenticates with the access_token query parameter and
// completes the hub handshake. ctx bounds only the dial and the handshake.
func (t *Transport) Dial(ctx context.Context) (realtime.Conn, error) {
	token := ""
	if t.Tokens != nil {
		var err error
		token, err = t.Tokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("get token: %w", err)
		}
	}

	endpoint, err := Endpoint(t.URL, token)
	if err != nil {
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, orDefault(t.HandshakeTimeout, DefaultHandshakeTimeout))
	defer cancel()

	ws, _, err := websocket.Dial(hctx, endpoint, &websocket.DialOptions{HTTPClient: t.HTTPClient})
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	ws.SetReadLimit(readLimit)

	rest, err := handshake(hctx, ws)
	if err != nil {
		_ = ws.Close(websocket.StatusProtocolError, "handshake failed")
		return nil, err
	}

	t.Log.Debug().Str("url", t.URL).Msg("hub connected")
	return newConn(ws, t.Log, orDefault(t.KeepAlive, DefaultKeepAlive), rest), nil
}

// Endpoint converts an http(s) hub URL to its websocket form and adds the
// access token.
func Endpoint(hubURL, token string) (string, error) {
	u, err := url.Parse(hubURL)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("hub url %q: unsupported scheme %q", hubURL, u.Scheme)
	}

	if token != "" {
		q := u.Query()
		q.Set("access_token", token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// handshake sends the protocol request and waits for the response. Frames
// that arrive in the same payload after the response are returned.
func handshake(ctx context.Context, ws *websocket.Conn) ([][]byte, error) {
	if err := ws.Write(ctx, websocket.MessageText, handshakeRequest); err != nil {
		return nil, fmt.Errorf("send handshake: %w", err)
	}

	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("read handshake: %w", err)
		}

		frames := splitFrames(data)
		if len(frames) == 0 {
			continue
		}

		var resp handshakeResponse
		if err := json.Unmarshal(frames[0], &resp); err != nil {
			return nil, fmt.Errorf("decode handshake: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrHandshake, resp.Error)
		}
		return frames[1:], nil
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
