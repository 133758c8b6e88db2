package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvance_AllowsTableTransitions(t *testing.T) {
	s := &State{Node: NodeTriage}
	require.NoError(t, s.advance(NodeRespond))
	require.NoError(t, s.advance(NodeDone))
	assert.True(t, s.Done())
}

func TestAdvance_RejectsOffTableTransitions(t *testing.T) {
	cases := []struct {
		from, to Node
	}{
		{NodeRespond, NodeTriage},
		{NodeDone, NodeTriage},
		{NodeDone, NodeRespond},
		{NodeTriage, NodeTriage},
	}
	for _, tc := range cases {
		s := &State{Node: tc.from}
		err := s.advance(tc.to)
		require.Error(t, err, "%s -> %s should be rejected", tc.from, tc.to)
		assert.Equal(t, tc.from, s.Node)
	}
}
