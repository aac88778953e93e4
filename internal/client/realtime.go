package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/framez/backend/internal/models"
)

// Subscription is a live stream of the caller's post changes.
type Subscription struct {
	conn *websocket.Conn
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	err error
}

// SubscribeOwnPosts streams change events for posts owned by the signed-in
// user. fn runs on the subscription's read goroutine. The stream ends when
// ctx is canceled, Unsubscribe is called or the server goes away.
func (c *Client) SubscribeOwnPosts(ctx context.Context, fn func(models.PostChange)) (*Subscription, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	u, err := c.endpoint("/api/v1/realtime/posts", url.Values{"access_token": {token}})
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	header := http.Header{}
	header.Set(ClientInfoHeader, c.clientInfo)

	conn, resp, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			defer resp.Body.Close()
			return nil, decodeAPIError(resp)
		}
		return nil, fmt.Errorf("subscribe to post changes: %w", err)
	}

	sub := &Subscription{conn: conn, done: make(chan struct{})}
	go sub.read(fn)
	go func() {
		select {
		case <-ctx.Done():
			sub.Unsubscribe()
		case <-sub.done:
		}
	}()
	return sub, nil
}

func (s *Subscription) read(fn func(models.PostChange)) {
	defer close(s.done)
	for {
		var change models.PostChange
		if err := s.conn.ReadJSON(&change); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !errors.Is(err, net.ErrClosed) {
				s.setErr(err)
			}
			return
		}
		if fn != nil {
			fn(change)
		}
	}
}

func (s *Subscription) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Unsubscribe closes the stream. It is safe to call more than once and from
// inside the change callback.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

// Done is closed once the stream has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Err reports why the stream ended, or nil for a normal close.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
