package handlers

import (
	"errors"
	"fmt"

	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
)

// SocketHandshake is the validated Socket.IO handshake auth payload.
type SocketHandshake struct {
	Token      string
	APIKey     string
	Channel    types.ChannelType
	SessionID  string
	TerminalID string
}

// ValidateSocketAuthPayload checks that the handshake names a known channel,
// carries a credential and includes the ids that channel requires. Ids a
// channel does not use are dropped; a relay binds its session only by
// registering.
func ValidateSocketAuthPayload(p wire.SocketAuthPayload) (SocketHandshake, error) {
	if p.Token == "" && p.APIKey == "" {
		return SocketHandshake{}, errors.New("missing authentication token")
	}

	channel := types.ChannelType(p.ClientType)
	switch channel {
	case types.ChannelRelay, types.ChannelRunner, types.ChannelHub:
	case types.ChannelViewer:
		if p.SessionID == "" {
			return SocketHandshake{}, errors.New("session id required for viewer clients")
		}
	case types.ChannelTerminal:
		if p.TerminalID == "" {
			return SocketHandshake{}, errors.New("terminal id required for terminal clients")
		}
	default:
		return SocketHandshake{}, fmt.Errorf("invalid client type: %q", p.ClientType)
	}

	h := SocketHandshake{Token: p.Token, APIKey: p.APIKey, Channel: channel}
	switch channel {
	case types.ChannelViewer:
		h.SessionID = p.SessionID
	case types.ChannelTerminal:
		h.TerminalID = p.TerminalID
	}
	return h, nil
}
