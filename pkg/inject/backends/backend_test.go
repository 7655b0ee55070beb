package backends

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoOpAlwaysAvailableAndSucceeds(t *testing.T) {
	n := &NoOp{PriorityValue: 9}
	require.True(t, n.Available())
	require.Equal(t, "noop", n.ID())
	require.Equal(t, 9, n.Priority())
	require.NoError(t, n.Inject(context.Background(), "anything", FocusInfo{AppID: "Unknown"}))
}

func TestModeRoundTripsThroughContext(t *testing.T) {
	ctx := context.Background()
	require.Equal(t, ModeUnset, ModeFromContext(ctx))

	ctx = WithMode(ctx, ModePaste)
	require.Equal(t, ModePaste, ModeFromContext(ctx))

	ctx = WithMode(ctx, ModeKeystroke)
	require.Equal(t, ModeKeystroke, ModeFromContext(ctx))
}
