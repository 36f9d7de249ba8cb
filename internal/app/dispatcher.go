package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/mockinterview/internal/observe"
	"github.com/MrWong99/mockinterview/internal/prompt"
	"github.com/MrWong99/mockinterview/pkg/room"
)

const closeTimeout = 10 * time.Second

// Dispatcher runs one [SessionManager] per joined candidate. Its
// HandleJoin method is a room.JoinHandler.
type Dispatcher struct {
	deps SessionManagerConfig

	mu       sync.Mutex
	managers map[string]*running
	closed   bool
	wg       sync.WaitGroup
}

type running struct {
	m      *SessionManager
	cancel context.CancelFunc
}

// NewDispatcher returns a Dispatcher that builds managers from deps.
func NewDispatcher(deps SessionManagerConfig) *Dispatcher {
	return &Dispatcher{deps: deps, managers: make(map[string]*running)}
}

var _ room.JoinHandler = (*Dispatcher)(nil).HandleJoin

func managerKey(rm room.Room, p room.RemoteParticipant) string {
	return rm.Name() + "/" + p.Identity()
}

// HandleJoin starts an interviewer for p and blocks until ctx is done, which
// the room signals when p leaves. The manager is then closed.
func (d *Dispatcher) HandleJoin(ctx context.Context, rm room.Room, p room.RemoteParticipant) {
	ctx = observe.WithLogAttrs(ctx, slog.String("room", rm.Name()), slog.String("participant", p.Identity()))
	log := observe.Logger(ctx)
	key := managerKey(rm, p)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		log.Debug("dispatcher closed, ignoring join")
		return
	}
	if _, dup := d.managers[key]; dup {
		d.mu.Unlock()
		log.Warn("participant already has an interviewer")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m := NewSessionManager(d.deps)
	d.managers[key] = &running{m: m, cancel: cancel}
	d.wg.Add(1)
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.managers, key)
		d.mu.Unlock()
		d.wg.Done()
	}()

	if err := m.Start(ctx, rm, p); err != nil {
		log.Error("start interviewer", "err", err)
	} else {
		<-ctx.Done()
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := m.Close(cctx); err != nil {
		log.Warn("close interviewer", "err", err)
	}
}

// SetCatalog replaces the prompt catalog used by managers started after the
// call. Running managers keep theirs.
func (d *Dispatcher) SetCatalog(c prompt.Catalog) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.deps.Catalog = c
}

func (d *Dispatcher) catalog() prompt.Catalog {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.deps.Catalog == nil {
		return prompt.Default()
	}
	return d.deps.Catalog
}

// Active returns the number of running managers.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.managers)
}

// Manager returns the manager for identity in roomName, or nil.
func (d *Dispatcher) Manager(roomName, identity string) *SessionManager {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.managers[roomName+"/"+identity]; ok {
		return r.m
	}
	return nil
}

// Close stops accepting joins, closes every running manager and waits for
// their join handlers to return or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	all := make([]*running, 0, len(d.managers))
	for _, r := range d.managers {
		all = append(all, r)
	}
	d.mu.Unlock()

	var errs []error
	for _, r := range all {
		if err := r.m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}
