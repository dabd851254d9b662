package rooms

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/repositories"
	"github.com/muster-live/muster/pkg/rooms/constants"
	"github.com/muster-live/muster/pkg/rooms/types"
)

// Room is the single-writer coordinator for one room code. Every
// operation takes the room mutex, so operations on the same room are
// strictly serialized; different rooms share nothing. State is
// hydrated from the repository exactly once, on first touch, under the
// same mutex, so early callers queue until hydration completes.
type Room struct {
	code       string
	repository repositories.Repository
	ttl        time.Duration
	now        func() time.Time
	logger     *log.Logger

	mu        sync.Mutex
	hydrated  bool
	members   map[string]*types.Member
	settings  []types.Setting
	observers map[*Observer]struct{}
	timer     *time.Timer
	deadline  int64
	lastWrite int64
	touchedAt time.Time
}

type NewRoomOptions struct {
	Code       string
	Repository repositories.Repository
	TTL        time.Duration
	// Clock overrides the room's time source. Nil means time.Now.
	Clock  func() time.Time
	Logger *log.Logger
}

func NewRoom(opts NewRoomOptions) *Room {
	ttl := opts.TTL
	if ttl < constants.MinTTL {
		ttl = constants.MinTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", log.DefaultLoggerFlag, log.LogLevelError)
	}
	return &Room{
		code:       opts.Code,
		repository: opts.Repository,
		ttl:        ttl,
		now:        clock,
		logger:     logger.WithPrefix(fmt.Sprintf("room %s", opts.Code)),
		members:    make(map[string]*types.Member),
		observers:  make(map[*Observer]struct{}),
		touchedAt:  clock(),
	}
}

func (r *Room) Code() string {
	return r.code
}

// Join creates or updates the member for params.UserID and returns the
// member's id and token. A missing id gets a fresh one. Optional
// fields overlay the existing values; unset fields are left unchanged.
// Join never fails validation.
func (r *Room) Join(ctx context.Context, params types.JoinParams) (*types.JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return nil, err
	}

	userID := params.UserID
	if userID == "" {
		userID = uuid.NewString()
	}

	member, ok := r.members[userID]
	if !ok {
		member = &types.Member{
			UserID: userID,
			Token:  uuid.NewString(),
			Status: types.Status{Health: constants.DefaultHealth},
		}
		r.members[userID] = member
	}

	if params.Name != nil {
		member.Name = *params.Name
	}
	if params.Team != nil {
		member.Status.Team = *params.Team
	}
	if params.Role != nil {
		member.Status.Role = *params.Role
	}
	if params.Health != nil && isFinite(*params.Health) {
		member.Status.Health = *params.Health
	}
	member.UpdatedAt = r.nowMillis()

	if err := r.persistLocked(ctx); err != nil {
		return nil, err
	}

	r.logger.Debug("member %s joined", userID)
	return &types.JoinResult{
		UserID: userID,
		Token:  member.Token,
	}, nil
}

// Leave removes the member entirely, discarding location, status and
// ability history.
func (r *Room) Leave(ctx context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	if userID == "" {
		return &types.ValidationError{Reason: "userId is required"}
	}
	if token == "" {
		return &types.ValidationError{Reason: "token is required"}
	}
	if _, err := r.authorizeLocked(userID, token); err != nil {
		return err
	}

	delete(r.members, userID)

	if err := r.persistLocked(ctx); err != nil {
		return err
	}

	r.logger.Debug("member %s left", userID)
	return nil
}

// UpdateLocation replaces the member's location wholesale.
func (r *Room) UpdateLocation(ctx context.Context, params types.LocationParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	if params.UserID == "" {
		return &types.ValidationError{Reason: "userId is required"}
	}
	if params.Token == "" {
		return &types.ValidationError{Reason: "token is required"}
	}
	if params.Lat == nil || !isFinite(*params.Lat) {
		return &types.ValidationError{Reason: "lat must be a finite number"}
	}
	if params.Lon == nil || !isFinite(*params.Lon) {
		return &types.ValidationError{Reason: "lon must be a finite number"}
	}
	member, err := r.authorizeLocked(params.UserID, params.Token)
	if err != nil {
		return err
	}

	r.setLocationLocked(member, *params.Lat, *params.Lon, params.TS)

	return r.persistLocked(ctx)
}

// ActivateAbility appends an entry to the member's ability log.
func (r *Room) ActivateAbility(ctx context.Context, params types.AbilityParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	if params.UserID == "" {
		return &types.ValidationError{Reason: "userId is required"}
	}
	if params.Token == "" {
		return &types.ValidationError{Reason: "token is required"}
	}
	if params.AbilityID == "" {
		return &types.ValidationError{Reason: "abilityId is required"}
	}
	member, err := r.authorizeLocked(params.UserID, params.Token)
	if err != nil {
		return err
	}

	member.Abilities = append(member.Abilities, types.AbilityEvent{
		AbilityID: params.AbilityID,
		TS:        r.timestampOrNow(params.TS),
	})
	// Retention cap: drop the oldest entries past the limit.
	if len(member.Abilities) > constants.AbilityLogMax {
		member.Abilities = member.Abilities[len(member.Abilities)-constants.AbilityLogMax:]
	}
	member.UpdatedAt = r.nowMillis()

	return r.persistLocked(ctx)
}

// UpdateStatus merges the provided team/role/health over the member's
// previous status.
func (r *Room) UpdateStatus(ctx context.Context, params types.StatusParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	if params.UserID == "" {
		return &types.ValidationError{Reason: "userId is required"}
	}
	if params.Token == "" {
		return &types.ValidationError{Reason: "token is required"}
	}
	member, err := r.authorizeLocked(params.UserID, params.Token)
	if err != nil {
		return err
	}

	if params.Team != nil {
		member.Status.Team = *params.Team
	}
	if params.Role != nil {
		member.Status.Role = *params.Role
	}
	if params.Health != nil && isFinite(*params.Health) {
		member.Status.Health = *params.Health
	}
	member.UpdatedAt = r.nowMillis()

	return r.persistLocked(ctx)
}

// GetSettings returns a copy of the room-scoped settings list.
func (r *Room) GetSettings(ctx context.Context) ([]types.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.hydrateLocked(ctx); err != nil {
		return nil, err
	}

	settings := make([]types.Setting, len(r.settings))
	copy(settings, r.settings)
	return settings, nil
}

// SetSettings replaces the settings list wholesale. It is not
// token-gated: anyone who can reach the room may set it.
func (r *Room) SetSettings(ctx context.Context, settings []types.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.beginMutationLocked(ctx); err != nil {
		return err
	}

	r.settings = make([]types.Setting, len(settings))
	copy(r.settings, settings)

	// Settings do not bump any member's updatedAt: while members
	// exist, the armed deadline is unchanged by this persist. Only a
	// memberless room re-anchors on the write itself.
	return r.persistLocked(ctx)
}

// Snapshot returns the full public view of the room, tokens stripped.
func (r *Room) Snapshot(ctx context.Context) (*types.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.hydrateLocked(ctx); err != nil {
		return nil, err
	}

	return r.snapshotLocked(), nil
}

func (r *Room) snapshotLocked() *types.Snapshot {
	members := make([]types.MemberView, 0, len(r.members))
	for _, member := range r.members {
		members = append(members, member.View())
	}
	types.SortMembers(members)

	settings := make([]types.Setting, len(r.settings))
	copy(settings, r.settings)

	return &types.Snapshot{
		Members:  members,
		Settings: settings,
	}
}

// Deadline returns the currently armed expiry deadline in Unix
// milliseconds, or 0 when no timer is armed.
func (r *Room) Deadline() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

// MemberCount returns the number of members currently in the room.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Reapable reports whether the room instance can be dropped from the
// registry: nothing connected, nothing stored, and no recent touch.
// It runs the expiry check first, so an abandoned room's durable
// record is wiped by the reaper even if nothing ever accesses the
// room again.
func (r *Room) Reapable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.observers) > 0 {
		return false
	}
	if r.hydrated {
		if err := r.expireIfIdleLocked(context.Background()); err != nil {
			r.logger.Error("expiry sweep failed: %v", err)
			return false
		}
	}
	if r.deadline != 0 {
		return false
	}
	if r.hydrated && len(r.members) > 0 {
		return false
	}
	return r.now().Sub(r.touchedAt) >= r.ttl
}

// beginMutationLocked hydrates on first touch and runs the
// opportunistic expiry check that precedes every mutating operation.
func (r *Room) beginMutationLocked(ctx context.Context) error {
	if err := r.hydrateLocked(ctx); err != nil {
		return err
	}
	return r.expireIfIdleLocked(ctx)
}

func (r *Room) hydrateLocked(ctx context.Context) error {
	r.touchedAt = r.now()
	if r.hydrated {
		return nil
	}

	record, err := r.repository.LoadRoom(ctx, r.code)
	if err != nil {
		if !repositories.IsNotFound(err) {
			return fmt.Errorf("failed to hydrate room: %w", err)
		}
		record = &types.RoomRecord{Members: make(map[string]*types.Member)}
	} else if record.Deadline > 0 {
		r.lastWrite = record.Deadline - r.ttl.Milliseconds()
	} else {
		// A stored record with no armed deadline still counts as a
		// write, so an empty room cannot outlive the TTL.
		r.lastWrite = r.nowMillis()
	}

	r.members = record.Members
	if r.members == nil {
		r.members = make(map[string]*types.Member)
	}
	r.settings = record.Settings
	r.hydrated = true

	r.armTimerLocked()

	r.logger.Debug("hydrated with %d members", len(r.members))
	return nil
}

// expireIfIdleLocked wipes the room if the TTL has elapsed since the
// last member mutation, or since the last durable write when no
// members remain (a room holding only settings, or an empty record
// left by the last member's leave). The wipe clears the member map,
// drops the settings, and deletes the persisted record in full.
// Re-running it immediately after is a no-op.
func (r *Room) expireIfIdleLocked(ctx context.Context) error {
	last := r.lastActivityLocked()
	if last == 0 {
		last = r.lastWrite
	}
	if last == 0 {
		return nil
	}
	if r.nowMillis()-last < r.ttl.Milliseconds() {
		return nil
	}

	r.members = make(map[string]*types.Member)
	r.settings = nil
	r.lastWrite = 0
	r.stopTimerLocked()

	if err := r.repository.DeleteRoom(ctx, r.code); err != nil {
		return fmt.Errorf("failed to delete expired room: %w", err)
	}

	r.logger.Info("expired after %s idle", r.ttl)
	return nil
}

// persistLocked writes the full record and re-arms the expiry timer.
// Mutations do not return to their caller until both are done.
func (r *Room) persistLocked(ctx context.Context) error {
	r.lastWrite = r.nowMillis()
	r.armTimerLocked()

	record := &types.RoomRecord{
		Members:  r.members,
		Settings: r.settings,
		Deadline: r.deadline,
	}
	if err := r.repository.SaveRoom(ctx, r.code, record); err != nil {
		return fmt.Errorf("failed to persist room: %w", err)
	}

	return nil
}

// armTimerLocked replaces any pending wake timer with one at
// lastActivity + TTL. With no members the last durable write anchors
// the timer instead, so a memberless record still gets wiped. A room
// with nothing stored gets no timer.
func (r *Room) armTimerLocked() {
	r.stopTimerLocked()

	last := r.lastActivityLocked()
	if last == 0 {
		last = r.lastWrite
	}
	if last == 0 {
		return
	}

	r.deadline = last + r.ttl.Milliseconds()
	wait := time.Duration(r.deadline-r.nowMillis()) * time.Millisecond
	if wait < 0 {
		wait = 0
	}
	r.timer = time.AfterFunc(wait, r.onExpiryTimer)
}

func (r *Room) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.deadline = 0
}

func (r *Room) onExpiryTimer() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.expireIfIdleLocked(context.Background()); err != nil {
		r.logger.Error("expiry sweep failed: %v", err)
	}
}

func (r *Room) lastActivityLocked() int64 {
	var last int64
	for _, member := range r.members {
		if member.UpdatedAt > last {
			last = member.UpdatedAt
		}
	}
	return last
}

// authorizeLocked resolves the member and checks its token. Unknown
// users and wrong tokens produce the same error.
func (r *Room) authorizeLocked(userID, token string) (*types.Member, error) {
	member, ok := r.members[userID]
	if !ok || member.Token != token {
		return nil, &types.AuthorizationError{}
	}
	return member, nil
}

// setLocationLocked replaces the member's location wholesale and bumps
// its updatedAt. Shared by the token-gated call and the bound-channel
// path.
func (r *Room) setLocationLocked(member *types.Member, lat, lon float64, ts *float64) {
	member.Location = &types.Location{
		Lat: lat,
		Lon: lon,
		TS:  r.timestampOrNow(ts),
	}
	member.UpdatedAt = r.nowMillis()
}

func (r *Room) timestampOrNow(ts *float64) int64 {
	if ts == nil || !isFinite(*ts) {
		return r.nowMillis()
	}
	return int64(*ts)
}

func (r *Room) nowMillis() int64 {
	return r.now().UnixMilli()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
