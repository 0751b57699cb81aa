package weather

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshotWarningCode(t *testing.T) {
	t.Parallel()

	var nilSnapshot *Snapshot
	require.Equal(t, NoWarning, nilSnapshot.WarningCode())
	require.Equal(t, NoWarning, (&Snapshot{}).WarningCode())
	require.Equal(t, NoWarning, (&Snapshot{Warning: &Warning{}}).WarningCode())
	require.Equal(t, "Code oranje", (&Snapshot{Warning: &Warning{Code: "Code oranje"}}).WarningCode())
}

func TestStateHasData(t *testing.T) {
	t.Parallel()

	require.False(t, State{}.HasData())
	require.False(t, State{ConsecutiveErrors: 3, LastUpdateStatus: StatusError}.HasData())
	require.True(t, State{Snapshot: &Snapshot{}}.HasData())
}
