package blockio_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buddyfs/blockcore/pkg/blockio"
)

func TestRefIsZero(t *testing.T) {
	require.True(t, blockio.Ref{}.IsZero())
	require.True(t, blockio.Ref{Seq: 5}.IsZero(), "Seq alone does not make a reference present")
	require.False(t, blockio.Ref{Blkno: 1}.IsZero())
}
