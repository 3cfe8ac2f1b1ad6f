package engine

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/go-logr/logr"

	"github.com/controlplane/simkube/action"
	"github.com/controlplane/simkube/controllers"
	"github.com/controlplane/simkube/corev1"
	"github.com/controlplane/simkube/history"
	"github.com/controlplane/simkube/resources"
	"github.com/controlplane/simkube/store"
)

// Fleet is the set of controller instances the driver cycles through, each
// with its exclusively-owned LocalState (spec.md §5 "Local controller
// state"). Sessions tracks, per controller id, the last revision that
// controller observed — the session a history's ValidRevisions is
// evaluated against.
type Fleet struct {
	Controllers []controllers.Controller
	local       map[string]controllers.LocalState
	sessions    map[string]*corev1.Revision
}

// NewFleet builds a Fleet with fresh LocalState for every controller.
func NewFleet(cs []controllers.Controller) *Fleet {
	f := &Fleet{
		Controllers: cs,
		local:       make(map[string]controllers.LocalState, len(cs)),
		sessions:    make(map[string]*corev1.Revision, len(cs)),
	}
	for _, c := range cs {
		f.local[key(c)] = controllers.NewLocalState(c.Kind)
	}
	return f
}

func key(c controllers.Controller) string {
	return c.Kind.String() + "/" + c.ID
}

// Driver repeatedly selects a (controller, readable view) pair, runs that
// controller's Step, and commits the resulting Action against History —
// spec.md §2's control-flow paragraph and §9's "the driver picks a
// random (controller, validRevision) pair... for production it would pick
// max".
type Driver struct {
	History history.History
	Fleet   *Fleet
	Clock   store.Clock
	Log     logr.Logger

	// Rand selects which controller and which of its valid revisions to
	// use on each Tick, when more than one is available. A nil Rand (the
	// zero Driver) always picks the first controller and the last (newest)
	// valid revision — the deterministic "production" policy spec.md §9
	// describes for a non-model-checking deployment.
	Rand *rand.Rand

	OnAction func(c controllers.Controller, act *action.Action, committed bool, err error)
}

// NewDriver wires History and Fleet together with the given clock, leaving
// Rand nil. Set the returned Driver's Rand field to get the model-checker's
// randomized controller/view selection instead of the deterministic
// policy.
func NewDriver(h history.History, f *Fleet, clock store.Clock) *Driver {
	return &Driver{History: h, Fleet: f, Clock: clock, Log: logr.Discard()}
}

// Tick runs exactly one controller step and, if it produced an action,
// commits it. It returns the controller stepped and whether a commit
// happened (false for NoAction or a rejected write, both of which are
// legitimate no-ops per spec.md §7).
func (d *Driver) Tick() (controllers.Controller, bool) {
	if len(d.Fleet.Controllers) == 0 {
		return controllers.Controller{}, false
	}
	c := d.pickController()
	view := d.pickView(c)
	now := d.Clock.Now()

	local := d.Fleet.local[key(c)]
	act, nextLocal := controllers.Step(c, view, local, now)
	d.Fleet.local[key(c)] = nextLocal

	sessionRev := view.Revision
	d.Fleet.sessions[key(c)] = &sessionRev

	if act == nil {
		if d.OnAction != nil {
			d.OnAction(c, nil, false, nil)
		}
		return c, false
	}

	_, ok, err := d.History.Add(view.Revision, Mutate(act, now))
	if d.OnAction != nil {
		d.OnAction(c, act, ok, err)
	}
	if err != nil && !errors.Is(err, store.ErrNoOp) {
		d.Log.V(1).Info("action rejected", "controller", key(c), "action", act.Kind.String(), "error", err)
	}
	return c, ok
}

// Run ticks the driver until ctx is cancelled, pausing interval between
// ticks (the "tick rate" knob cmd/engine exposes as --tick-interval).
func (d *Driver) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}

// CrashNode commits a NodeCrash action directly — this is an environment
// event, not a controller decision (spec.md §6 lists NodeCrash in the
// action taxonomy without attributing it to any of the seven
// controllers), so it bypasses Fleet/Step entirely.
func (d *Driver) CrashNode(id string) (corev1.Revision, bool, error) {
	return d.History.Add(d.History.MaxRevision(), Mutate(&action.Action{Kind: action.NodeCrash, ControllerID: id}, d.Clock.Now()))
}

func (d *Driver) pickController() controllers.Controller {
	cs := d.Fleet.Controllers
	if d.Rand == nil {
		return cs[0]
	}
	return cs[d.Rand.Intn(len(cs))]
}

func (d *Driver) pickView(c controllers.Controller) *resources.View {
	session := d.Fleet.sessions[key(c)]
	valid := d.History.ValidRevisions(session)
	if len(valid) == 0 {
		valid = []corev1.Revision{d.History.MaxRevision()}
	}
	rev := valid[len(valid)-1]
	if d.Rand != nil {
		rev = valid[d.Rand.Intn(len(valid))]
	}
	view, ok := d.History.StateAt(rev)
	if !ok {
		view, _ = d.History.StateAt(d.History.MaxRevision())
	}
	return view
}
