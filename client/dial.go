package client

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/coresight/cswp/transport"
)

// Dial connects to a CSWP server at addr over TCP and performs the INIT
// handshake.
func Dial(ctx context.Context, addr string, clientID string, cfg Config) (*Client, error) {
	t := transport.NewTCPTransport(addr, 0)
	c := New(t, cfg)
	if _, err := c.ConnectAndInit(ctx, clientID); err != nil {
		return nil, err
	}
	return c, nil
}

// DialWithBackoff retries Dial with exponential backoff until it succeeds,
// ctx is cancelled, or b gives up. The reference IIOD client's connect
// path carried an unimplemented comment describing exactly this retry
// strategy; this wires it up against the real library.
func DialWithBackoff(ctx context.Context, addr string, clientID string, cfg Config, b backoff.BackOff) (*Client, error) {
	var c *Client
	op := func() error {
		var err error
		c, err = Dial(ctx, addr, clientID, cfg)
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return nil, err
	}
	return c, nil
}

// DefaultBackoff returns a sensible exponential backoff policy for
// DialWithBackoff: an initial 200ms interval growing by the library's
// default multiplier (1.5, randomized) up to 10s, retried indefinitely
// until ctx is cancelled.
func DefaultBackoff() backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 10 * time.Second
	eb.MaxElapsedTime = 0
	return eb
}
