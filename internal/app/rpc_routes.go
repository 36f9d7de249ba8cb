package app

import (
	"context"
	"sync"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/pkg/room"
)

// A room holds one handler per RPC method while every candidate in it gets
// their own manager. callerRoutes owns the room-level handler and passes each
// call to the manager bound to the caller.
type callerRoutes struct {
	mu    sync.Mutex
	rooms map[room.LocalParticipant]map[string]room.RPCHandler
}

var updateConfigRoutes = &callerRoutes{rooms: make(map[room.LocalParticipant]map[string]room.RPCHandler)}

// add routes calls from identity in rm to h. The room-level handler is
// registered with the first caller.
func (r *callerRoutes) add(rm room.Room, identity string, h room.RPCHandler) {
	lp := rm.LocalParticipant()

	r.mu.Lock()
	defer r.mu.Unlock()
	byCaller, ok := r.rooms[lp]
	if !ok {
		byCaller = make(map[string]room.RPCHandler)
		r.rooms[lp] = byCaller
		lp.RegisterRPCMethod(UpdateConfigMethod, func(ctx context.Context, inv room.RPCInvocation) (string, error) {
			return r.dispatch(ctx, lp, inv)
		})
	}
	byCaller[identity] = h
}

// remove drops the route for identity. The room-level handler goes with the
// last one.
func (r *callerRoutes) remove(rm room.Room, identity string) {
	lp := rm.LocalParticipant()

	r.mu.Lock()
	defer r.mu.Unlock()
	byCaller, ok := r.rooms[lp]
	if !ok {
		return
	}
	delete(byCaller, identity)
	if len(byCaller) == 0 {
		delete(r.rooms, lp)
		lp.UnregisterRPCMethod(UpdateConfigMethod)
	}
}

// dispatch answers callers without an interviewer like an unchanged
// configuration.
func (r *callerRoutes) dispatch(ctx context.Context, lp room.LocalParticipant, inv room.RPCInvocation) (string, error) {
	r.mu.Lock()
	h := r.rooms[lp][inv.CallerIdentity]
	r.mu.Unlock()
	if h == nil {
		observe.Logger(ctx).Debug("rpc rejected", "method", UpdateConfigMethod, "caller", inv.CallerIdentity,
			"reason", "caller has no interviewer")
		return changedFalse, nil
	}
	return h(ctx, inv)
}
