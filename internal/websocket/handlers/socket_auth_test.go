package handlers

import (
	"testing"

	"github.com/Pizzaface/PizzaPi-sub003/pkg/types"
	"github.com/Pizzaface/PizzaPi-sub003/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestValidateSocketAuthPayload_RequiresCredential(t *testing.T) {
	_, err := ValidateSocketAuthPayload(wire.SocketAuthPayload{ClientType: "hub"})
	require.Error(t, err)
}

func TestValidateSocketAuthPayload_RejectsUnknownChannel(t *testing.T) {
	_, err := ValidateSocketAuthPayload(wire.SocketAuthPayload{ClientType: "admin", Token: "t"})
	require.Error(t, err)
	_, err = ValidateSocketAuthPayload(wire.SocketAuthPayload{Token: "t"})
	require.Error(t, err)
}

func TestValidateSocketAuthPayload_ChannelIDs(t *testing.T) {
	_, err := ValidateSocketAuthPayload(wire.SocketAuthPayload{ClientType: "viewer", Token: "t"})
	require.Error(t, err)
	_, err = ValidateSocketAuthPayload(wire.SocketAuthPayload{ClientType: "terminal", APIKey: "k"})
	require.Error(t, err)

	hs, err := ValidateSocketAuthPayload(wire.SocketAuthPayload{ClientType: "viewer", Token: "t", SessionID: "s1"})
	require.NoError(t, err)
	require.Equal(t, types.ChannelViewer, hs.Channel)
	require.Equal(t, "s1", hs.SessionID)

	hs, err = ValidateSocketAuthPayload(wire.SocketAuthPayload{ClientType: "runner", APIKey: "k"})
	require.NoError(t, err)
	require.Equal(t, types.ChannelRunner, hs.Channel)
	require.Equal(t, "k", hs.APIKey)
}

func TestValidateSocketAuthPayload_DropsUnusedIDs(t *testing.T) {
	hs, err := ValidateSocketAuthPayload(wire.SocketAuthPayload{
		ClientType: "relay", Token: "t", SessionID: "someone-elses", TerminalID: "t1",
	})
	require.NoError(t, err)
	require.Empty(t, hs.SessionID)
	require.Empty(t, hs.TerminalID)

	hs, err = ValidateSocketAuthPayload(wire.SocketAuthPayload{
		ClientType: "terminal", Token: "t", SessionID: "s1", TerminalID: "t1",
	})
	require.NoError(t, err)
	require.Empty(t, hs.SessionID)
	require.Equal(t, "t1", hs.TerminalID)
}
