// Package client is the orchestrator facade: it drives a single button
// connection from Connect through Pair/QuickVerify to a steady-state
// event-subscribed session, persisting credentials and dispatching
// callbacks along the way.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cvsouth/flic2-go/flic2err"
	"github.com/cvsouth/flic2-go/flic2model"
	"github.com/cvsouth/flic2-go/pairing"
	"github.com/cvsouth/flic2-go/session"
	"github.com/cvsouth/flic2-go/store"
	"github.com/cvsouth/flic2-go/transport"
)

// Subscriber receives the client's lifecycle and event notifications.
// Any field may be left nil.
type Subscriber struct {
	OnButtonEvent            func(flic2model.ButtonEvent)
	OnConnectionStateChanged func(flic2model.ConnectionState)
	OnBatteryLevel           func(uint8)
	OnError                  func(error)
}

// Client owns one button's connection lifecycle: a BLE link, a credential
// store, and (once paired or quick-verified) a session engine.
type Client struct {
	link  transport.Link
	store store.Store
	log   *slog.Logger

	subscriber Subscriber

	address     string
	addressType byte

	state  atomic.Int32 // flic2model.ConnectionState
	engine *session.Engine

	awaitingDirect atomic.Bool

	runCancel context.CancelFunc
}

// New builds a Client bound to link and a credential store. logger may be
// nil, in which case log/slog's default logger is used.
func New(link transport.Link, st store.Store, logger *slog.Logger, sub Subscriber) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		link:       link,
		store:      st,
		log:        logger,
		subscriber: sub,
	}
}

func (c *Client) setState(s flic2model.ConnectionState) {
	c.state.Store(int32(s))
	if c.subscriber.OnConnectionStateChanged != nil {
		c.subscriber.OnConnectionStateChanged(s)
	}
}

// State returns the client's current connection state.
func (c *Client) State() flic2model.ConnectionState {
	return flic2model.ConnectionState(c.state.Load())
}

// Connect marks the link as established. The BLE-level connect/scan step
// itself is outside this package's scope (see transport.Link); this
// records the client's own state transition once the caller has one.
func (c *Client) Connect(ctx context.Context) error {
	c.setState(flic2model.Connecting)
	c.setState(flic2model.Connected)
	return nil
}

// Pair runs a full Full Verify handshake against a button in pairing
// mode, persists the resulting credentials, and installs a session
// engine. It blocks until the handshake completes, fails, or ctx expires.
func (c *Client) Pair(ctx context.Context, address [6]byte, addressType byte) (flic2model.PairingCredentials, error) {
	c.setState(flic2model.Pairing)

	var result flic2model.PairingCredentials
	var info flic2model.ButtonInfo
	var handshakeErr error

	fv, wire, err := pairing.NewFullVerify(address, addressType, pairing.Callbacks{
		OnPairingComplete: func(creds flic2model.PairingCredentials, i flic2model.ButtonInfo) {
			result = creds
			info = i
		},
		OnError: func(err error) { handshakeErr = err },
	})
	if err != nil {
		return result, err
	}

	if err := c.link.Send(ctx, wire); err != nil {
		return result, flic2err.Connection(err, "send full verify request 1")
	}

	for !fv.IsComplete() && !fv.IsFailed() {
		data, err := c.recvOne(ctx)
		if err != nil {
			return result, err
		}
		reply, err := fv.HandlePacket(data)
		if err != nil {
			return result, err
		}
		if reply != nil {
			if err := c.link.Send(ctx, reply); err != nil {
				return result, flic2err.Connection(err, "send full verify request 2")
			}
		}
	}

	if fv.IsFailed() {
		if handshakeErr != nil {
			return result, handshakeErr
		}
		return result, flic2err.Pairing(flic2err.ReasonNone, "full verify failed")
	}

	c.address = result.Address
	c.addressType = addressType
	c.installSession(fv.ConnID(), fv.SessionKey())

	if err := c.store.Save(result); err != nil {
		return result, err
	}

	c.log.Info("paired", "address", result.Address, "name", info.Name)
	return result, nil
}

// QuickVerify re-establishes a session with a previously paired button
// using credentials loaded from the store.
func (c *Client) QuickVerify(ctx context.Context, address string) error {
	c.setState(flic2model.QuickVerifying)

	creds, err := c.store.Load(address)
	if err != nil {
		return err
	}

	var handshakeErr error
	qv, wire, err := pairing.NewQuickVerify(creds, pairing.Callbacks{
		OnError: func(err error) { handshakeErr = err },
	})
	if err != nil {
		return err
	}

	if err := c.link.Send(ctx, wire); err != nil {
		return flic2err.Connection(err, "send quick verify request")
	}

	for !qv.IsComplete() && !qv.IsFailed() {
		data, err := c.recvOne(ctx)
		if err != nil {
			return err
		}
		if err := qv.HandlePacket(data); err != nil {
			return err
		}
	}

	if qv.IsFailed() {
		if handshakeErr != nil {
			return handshakeErr
		}
		return flic2err.Pairing(flic2err.ReasonNone, "quick verify failed")
	}

	c.address = address
	c.installSession(qv.ConnID(), qv.SessionKey())
	return nil
}

func (c *Client) installSession(connID uint8, sessionKey [16]byte) {
	c.engine = session.New(linkAdapter{c.link}, connID, sessionKey, session.Callbacks{
		OnButtonEvent: func(evs []flic2model.ButtonEvent) {
			if c.subscriber.OnButtonEvent == nil {
				return
			}
			for _, ev := range evs {
				c.subscriber.OnButtonEvent(ev)
			}
		},
		OnBatteryLevel: c.subscriber.OnBatteryLevel,
		OnDisconnect: func(reason flic2model.DisconnectReason) {
			c.setState(flic2model.Disconnected)
			if c.subscriber.OnError != nil {
				c.subscriber.OnError(fmt.Errorf("link disconnected: %s", reason))
			}
		},
	})
}

// InitButtonEvents subscribes to the session's event stream and marks the
// client ready. Must be called after Pair or QuickVerify installs a
// session.
func (c *Client) InitButtonEvents(ctx context.Context, timeout time.Duration) error {
	if c.engine == nil {
		return flic2err.NotPaired("no session installed; call Pair or QuickVerify first")
	}

	c.awaitingDirect.Store(true)
	defer c.awaitingDirect.Store(false)

	if err := c.engine.InitButtonEvents(ctx, timeout); err != nil {
		return err
	}

	c.setState(flic2model.Ready)
	return nil
}

// Ping sends a signed keepalive and reports whether the button replied.
func (c *Client) Ping(ctx context.Context) (bool, error) {
	if c.engine == nil {
		return false, flic2err.NotPaired("no session installed")
	}
	c.awaitingDirect.Store(true)
	defer c.awaitingDirect.Store(false)
	return c.engine.Ping(ctx)
}

// GetButtonInfo re-requests the button's name/firmware/battery/serial over
// an already-established session.
func (c *Client) GetButtonInfo(ctx context.Context) (flic2model.ButtonInfo, error) {
	if c.engine == nil {
		return flic2model.ButtonInfo{}, flic2err.NotPaired("no session installed")
	}
	c.awaitingDirect.Store(true)
	defer c.awaitingDirect.Store(false)
	return c.engine.GetButtonInfo(ctx)
}

// Run drives the steady-state notification loop: every inbound packet is
// either routed to a blocked direct call (Ping/InitButtonEvents) or
// dispatched as an unsolicited event, until ctx is cancelled or the link
// closes.
func (c *Client) Run(ctx context.Context) error {
	if c.engine == nil {
		return flic2err.NotPaired("no session installed")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.runCancel = cancel
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-c.link.Notifications():
			if !ok {
				return nil
			}
			if c.awaitingDirect.Load() {
				c.engine.Deliver(data)
				continue
			}
			if err := c.engine.HandleNotification(ctx, data); err != nil {
				c.log.Warn("dropping unparsable notification", "error", err)
				if c.subscriber.OnError != nil {
					c.subscriber.OnError(err)
				}
			}
		}
	}
}

// Stop ends a running Run loop.
func (c *Client) Stop() {
	if c.runCancel != nil {
		c.runCancel()
	}
}

// Disconnect closes the underlying link.
func (c *Client) Disconnect() error {
	c.setState(flic2model.Disconnected)
	return c.link.Close()
}

func (c *Client) recvOne(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.link.Notifications():
		if !ok {
			return nil, flic2err.Connection(nil, "link closed while waiting for response")
		}
		return data, nil
	case <-ctx.Done():
		return nil, flic2err.Timeout("timed out waiting for response")
	}
}

// linkAdapter adapts transport.Link to session.Transport (send-only).
type linkAdapter struct {
	link transport.Link
}

func (a linkAdapter) Send(ctx context.Context, data []byte) error {
	return a.link.Send(ctx, data)
}
