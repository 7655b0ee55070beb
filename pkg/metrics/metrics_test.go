package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotReflectsIncrements(t *testing.T) {
	m := New()
	m.RingOverflow(3)
	m.BroadcastLagged(2)
	m.FrameProcessed()
	m.FrameProcessed()
	m.SegmentOpened()
	m.SegmentClosed()
	m.PluginFailover()
	m.InjectionSucceeded()
	m.InjectionFailed()

	snap := m.Snapshot()
	require.Equal(t, uint64(3), snap.RingOverflow)
	require.Equal(t, uint64(2), snap.BroadcastLagged)
	require.Equal(t, uint64(2), snap.FramesProcessed)
	require.Equal(t, uint64(1), snap.SegmentsOpened)
	require.Equal(t, uint64(1), snap.SegmentsClosed)
	require.Equal(t, uint64(1), snap.PluginFailovers)
	require.Equal(t, uint64(1), snap.InjectionSuccesses)
	require.Equal(t, uint64(1), snap.InjectionFailures)
}

func TestNewInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.FrameProcessed()
	require.Equal(t, uint64(1), a.Snapshot().FramesProcessed)
	require.Equal(t, uint64(0), b.Snapshot().FramesProcessed)
}
