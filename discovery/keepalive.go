package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/ascii-chat/acip"
)

// acdsKeepaliveInterval and acdsMaxMissedPings mirror session package's
// keepalive shape (5s interval, 3-miss death threshold), applied here
// to the ACDS control connection rather than a media session.
const (
	acdsKeepaliveInterval = 5 * time.Second
	acdsMaxMissedPings    = 3
)

// Reconnector re-resolves and redials ACDS after three consecutive
// missed pongs, so a client survives the rendezvous server bouncing
// without losing its session string reservation.
type Reconnector struct {
	uri           string
	enforceCert   bool
	sessionString string
}

// NewReconnector builds a Reconnector bound to uri, re-renewing
// sessionString's reservation on each successful reconnect.
func NewReconnector(uri string, enforceCert bool, sessionString string) *Reconnector {
	return &Reconnector{uri: uri, enforceCert: enforceCert, sessionString: sessionString}
}

// Run dials ACDS, sends periodic pings, and reconnects whenever
// acdsMaxMissedPings consecutive pongs are missed, until ctx is
// cancelled. onConnect is invoked with the fresh client after every
// (re)connect so the caller can re-join its session.
func (rc *Reconnector) Run(ctx context.Context, onConnect func(*Client) error) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		client, err := Dial(rc.uri, rc.enforceCert)
		if err != nil {
			return fmt.Errorf("discovery: reconnect dial: %w", err)
		}
		if rc.sessionString != "" {
			if _, err := client.RenewString(rc.sessionString); err != nil {
				client.Close()
				return fmt.Errorf("discovery: renewing session string after reconnect: %w", err)
			}
		}
		if onConnect != nil {
			if err := onConnect(client); err != nil {
				client.Close()
				return err
			}
		}
		died := rc.monitor(ctx, client)
		client.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !died {
			return nil
		}
		// loop and redial
	}
}

// monitor pings client every acdsKeepaliveInterval and returns true
// once acdsMaxMissedPings consecutive pings go unanswered, signalling
// the caller should reconnect.
func (rc *Reconnector) monitor(ctx context.Context, client *Client) bool {
	ticker := time.NewTicker(acdsKeepaliveInterval)
	defer ticker.Stop()

	missed := 0
	pongs := make(chan struct{}, 1)
	go func() {
		for {
			env, err := client.ReadEnvelope()
			if err != nil {
				return
			}
			if env.Type == acip.AcdsPong.String() {
				select {
				case pongs <- struct{}{}:
				default:
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-pongs:
			missed = 0
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return true
			}
			missed++
			if missed >= acdsMaxMissedPings {
				return true
			}
		}
	}
}
