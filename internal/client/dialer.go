package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/scenyx-chatsync/internal/chatsync"
)

const wsPath = "/ws/dms"

// WebsocketDialer opens the relay's websocket with the API's current token.
type WebsocketDialer struct {
	api *API
	// QueryToken sends the token as a query parameter instead of a header,
	// for proxies that strip Authorization on upgrade.
	QueryToken bool
	dialer     *websocket.Dialer
}

func NewWebsocketDialer(api *API, queryToken bool) *WebsocketDialer {
	return &WebsocketDialer{
		api:        api,
		QueryToken: queryToken,
		dialer:     &websocket.Dialer{HandshakeTimeout: 10 * time.Second, Proxy: http.ProxyFromEnvironment},
	}
}

func (d *WebsocketDialer) Dial(ctx context.Context) (chatsync.Conn, error) {
	u := *d.api.base
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += wsPath

	header := http.Header{}
	token := d.api.Token()
	if d.QueryToken {
		u.RawQuery = url.Values{"token": {token}}.Encode()
	} else {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w", wsPath, &APIError{Status: resp.StatusCode, Message: err.Error()})
		}
		return nil, fmt.Errorf("dial %s: %w", wsPath, err)
	}
	return conn, nil
}

// Dialer returns the header dialer with the query-parameter dialer as fallback.
func (a *API) Dialer() chatsync.Dialer {
	return chatsync.FallbackDialer{
		NewWebsocketDialer(a, false),
		NewWebsocketDialer(a, true),
	}
}
