package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlplane/simkube/controllers"
	"github.com/controlplane/simkube/resources"
)

func TestDriverTickJoinsNodeOverTwoTicks(t *testing.T) {
	h := newTestHistory()
	fleet := NewFleet([]controllers.Controller{
		{Kind: controllers.NodeKind, ID: "node-1", NodeCapacity: resources.ResourceList{}},
	})
	d := NewDriver(h, fleet, fixedClock{t: time.Unix(1000, 0)})

	_, committed := d.Tick()
	require.True(t, committed)
	view, _ := h.StateAt(h.MaxRevision())
	assert.True(t, view.HasJoined("node-1"))
	assert.False(t, view.Nodes.Has("node-1"))

	_, committed = d.Tick()
	require.True(t, committed)
	view, _ = h.StateAt(h.MaxRevision())
	assert.True(t, view.Nodes.Has("node-1"))

	_, committed = d.Tick()
	assert.False(t, committed)
}

func TestDriverCrashNodeRemovesNode(t *testing.T) {
	h := newTestHistory()
	fleet := NewFleet([]controllers.Controller{
		{Kind: controllers.NodeKind, ID: "node-2", NodeCapacity: resources.ResourceList{}},
	})
	d := NewDriver(h, fleet, fixedClock{t: time.Unix(1000, 0)})
	d.Tick()
	d.Tick()

	view, _ := h.StateAt(h.MaxRevision())
	require.True(t, view.Nodes.Has("node-2"))

	_, ok, err := d.CrashNode("node-2")
	require.NoError(t, err)
	require.True(t, ok)

	view, _ = h.StateAt(h.MaxRevision())
	assert.False(t, view.Nodes.Has("node-2"))
}
