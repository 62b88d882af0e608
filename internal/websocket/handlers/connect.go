package handlers

import (
	"context"

	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
)

// ChannelConnect runs the connect handshake for the caller's channel. Relay
// and runner sockets bind later, when they register.
func ChannelConnect(ctx context.Context, deps Deps, a AuthContext) EventResult {
	switch a.Channel() {
	case types.ChannelViewer:
		return ViewerConnect(ctx, deps, a)
	case types.ChannelTerminal:
		return TerminalConnect(ctx, deps, a)
	case types.ChannelHub:
		return HubConnect(ctx, deps, a)
	default:
		return empty()
	}
}
