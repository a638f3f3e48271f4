// Package monitor ties a logged-in session to one Ondus location and polls
// the appliances installed there.
package monitor

import (
	"context"
	"sync"

	"github.com/jake-scott/ondus-bridge/internal/pkg/logging"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusapi"
	"github.com/jake-scott/ondus-bridge/internal/pkg/ondusauth"
	"github.com/pkg/errors"
)

type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	}

	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is sent to observers on every state change, and with the current
// state when a background token refresh fails
type Event struct {
	State State
	Err   error
}

var (
	ErrNotReady          = errors.New("location is not ready")
	ErrApplianceNotFound = errors.New("appliance not found")
)

// Target is an appliance resolved by name
type Target struct {
	Location  string
	Room      string
	Appliance ondusapi.Appliance
	Identity  ondusapi.ApplianceIdentity
}

// Location is one Ondus location and the session used to reach it
type Location struct {
	name string
	auth ondusauth.Authenticator

	mu        sync.RWMutex
	state     State
	lastErr   error
	session   *ondusauth.Session
	hierarchy *ondusapi.Location

	obsMu     sync.Mutex
	observers map[int]func(Event)
	nextObs   int
}

func NewLocation(name string, auth ondusauth.Authenticator) *Location {
	return &Location{
		name:      name,
		auth:      auth,
		observers: make(map[int]func(Event)),
	}
}

func (l *Location) Name() string {
	return l.name
}

// State returns the current state and the error that caused a failure
func (l *Location) State() (State, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state, l.lastErr
}

// Subscribe registers fn for state events and returns a function that
// removes it.  fn must not call back into Subscribe.
func (l *Location) Subscribe(fn func(Event)) func() {
	l.obsMu.Lock()
	defer l.obsMu.Unlock()

	id := l.nextObs
	l.nextObs++
	l.observers[id] = fn

	return func() {
		l.obsMu.Lock()
		defer l.obsMu.Unlock()
		delete(l.observers, id)
	}
}

func (l *Location) notify(ev Event) {
	l.obsMu.Lock()
	fns := make([]func(Event), 0, len(l.observers))
	for _, fn := range l.observers {
		fns = append(fns, fn)
	}
	l.obsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (l *Location) setState(s State, err error) {
	l.mu.Lock()
	l.state = s
	l.lastErr = err
	l.mu.Unlock()

	l.notify(Event{State: s, Err: err})
}

// Connect logs in and loads the location's rooms and appliances.  A
// previous session is torn down first.
func (l *Location) Connect(ctx context.Context, username string, password string) error {
	ctx = logging.WithLocation(ctx, l.name)
	ctxLogger := logging.Logger(ctx)

	l.dropSession()
	l.setState(StateAuthenticating, nil)

	session, err := l.auth.Login(ctx, username, password)
	if err != nil {
		ctxLogger.WithError(err).Error("Ondus login failed")
		l.setState(StateFailed, err)
		return err
	}

	hierarchy, err := l.fetchHierarchy(ctx, session.API())
	if err != nil {
		session.Teardown()
		ctxLogger.WithError(err).Error("loading Ondus location")
		l.setState(StateFailed, err)
		return err
	}

	session.OnRefreshError(func(err error) {
		state, _ := l.State()
		l.notify(Event{State: state, Err: err})
	})

	l.mu.Lock()
	l.session = session
	l.hierarchy = hierarchy
	l.mu.Unlock()

	ctxLogger.Infof("location ready with %d rooms", len(hierarchy.Rooms))
	l.setState(StateReady, nil)

	return nil
}

func (l *Location) fetchHierarchy(ctx context.Context, api ondusapi.Ondus) (*ondusapi.Location, error) {
	dashboard, err := ondusapi.GetDashboard(api.WithContext(ctx))
	if err != nil {
		return nil, err
	}

	loc, err := dashboard.FindLocation(l.name)
	if err != nil {
		return nil, err
	}

	return loc, nil
}

// API returns a client bound to the location's session
func (l *Location) API() (ondusapi.Ondus, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.state != StateReady || l.session == nil {
		return nil, ErrNotReady
	}

	return l.session.API(), nil
}

// Resolve finds an appliance by room and appliance name.  When the cached
// hierarchy does not know it the dashboard is fetched again, once.
func (l *Location) Resolve(ctx context.Context, room string, appliance string) (Target, error) {
	api, err := l.API()
	if err != nil {
		return Target{}, err
	}

	l.mu.RLock()
	hierarchy := l.hierarchy
	l.mu.RUnlock()

	target, err := l.resolveIn(hierarchy, room, appliance)
	if err == nil {
		return target, nil
	}

	logging.Logger(ctx).Debugf("%s/%s not in cached dashboard, reloading", room, appliance)

	hierarchy, err = l.fetchHierarchy(ctx, api)
	if err != nil {
		return Target{}, err
	}

	l.mu.Lock()
	l.hierarchy = hierarchy
	l.mu.Unlock()

	target, err = l.resolveIn(hierarchy, room, appliance)
	if err != nil {
		return Target{}, errors.Wrapf(ErrApplianceNotFound, "%s/%s/%s", l.name, room, appliance)
	}

	return target, nil
}

// Targets lists every appliance of the cached location, optionally only
// those in room
func (l *Location) Targets(room string) ([]Target, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.state != StateReady || l.hierarchy == nil {
		return nil, ErrNotReady
	}

	var targets []Target
	for _, r := range l.hierarchy.Rooms {
		if room != "" && r.Name != room {
			continue
		}
		for _, a := range r.Appliances {
			targets = append(targets, Target{
				Location:  l.hierarchy.Name,
				Room:      r.Name,
				Appliance: a,
				Identity: ondusapi.ApplianceIdentity{
					LocationID:  l.hierarchy.ID.String(),
					RoomID:      r.ID.String(),
					ApplianceID: a.ID,
				},
			})
		}
	}

	return targets, nil
}

func (l *Location) resolveIn(hierarchy *ondusapi.Location, roomName string, applianceName string) (Target, error) {
	room, err := hierarchy.FindRoom(roomName)
	if err != nil {
		return Target{}, err
	}

	appliance, err := room.FindAppliance(applianceName)
	if err != nil {
		return Target{}, err
	}

	return Target{
		Location:  hierarchy.Name,
		Room:      room.Name,
		Appliance: *appliance,
		Identity: ondusapi.ApplianceIdentity{
			LocationID:  hierarchy.ID.String(),
			RoomID:      room.ID.String(),
			ApplianceID: appliance.ID,
		},
	}, nil
}

func (l *Location) dropSession() {
	l.mu.Lock()
	session := l.session
	l.session = nil
	l.hierarchy = nil
	l.mu.Unlock()

	if session != nil {
		session.Teardown()
	}
}

// Close tears down the session
func (l *Location) Close() {
	l.dropSession()
	l.setState(StateUnauthenticated, nil)
}
