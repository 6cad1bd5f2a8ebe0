package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"trivia-arena/internal/domain"
)

// Publisher delivers events to a connection by transport id.
// Publish must not block; unknown transport ids are ignored.
type Publisher interface {
	Publish(transportID string, evt domain.Event)
}

// RoomIndex tracks which room codes are in use (in-memory, Redis, etc).
type RoomIndex interface {
	Reserve(ctx context.Context, roomID string) (bool, error)
	Touch(ctx context.Context, roomIDs []string) error
	Release(ctx context.Context, roomID string) error
}

// ErrRegistryStopped is returned when the registry loop has exited.
var ErrRegistryStopped = errors.New("registry stopped")

const (
	maxCodeAttempts = 32
	indexTimeout    = 2 * time.Second
)

type registryMsg interface{ isRegistryMsg() }

type createRoomMsg struct {
	transportID string
	participant domain.Participant
	config      domain.GameConfig
	reply       chan createRoomReply
}

type createRoomReply struct {
	roomID string
	err    error
}

type joinRoomMsg struct {
	transportID string
	roomID      string
	participant domain.Participant
	reply       chan error
}

type updateConfigMsg struct {
	transportID string
	roomID      string
	config      domain.GameConfig
	reply       chan error
}

type startGameMsg struct {
	transportID string
	roomID      string
	questions   []domain.Question
	reply       chan error
}

type submitAnswerMsg struct {
	transportID string
	roomID      string
	delta       int
	reply       chan struct{}
}

type disconnectMsg struct {
	transportID string
	reply       chan struct{}
}

type getRoomMsg struct {
	roomID string
	reply  chan *domain.RoomSnapshot
}

type listRoomsMsg struct {
	reply chan []string
}

func (createRoomMsg) isRegistryMsg()   {}
func (joinRoomMsg) isRegistryMsg()     {}
func (updateConfigMsg) isRegistryMsg() {}
func (startGameMsg) isRegistryMsg()    {}
func (submitAnswerMsg) isRegistryMsg() {}
func (disconnectMsg) isRegistryMsg()   {}
func (getRoomMsg) isRegistryMsg()      {}
func (listRoomsMsg) isRegistryMsg()    {}

// Registry is the single source of truth for room membership, configuration and
// score aggregation. Every operation is a message handled to completion by one
// goroutine, so room state is never shared.
type Registry struct {
	inbox     chan registryMsg
	done      chan struct{}
	rooms     map[string]*room
	publisher Publisher
	index     RoomIndex
	newCode   func() (string, error)
	logger    *zap.Logger
}

// Option customizes a Registry.
type Option func(*Registry)

// WithCodeGenerator overrides room code generation (tests use deterministic codes).
func WithCodeGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newCode = gen }
}

// WithCodeLength sets the length of generated room codes.
func WithCodeLength(n int) Option {
	return func(r *Registry) {
		r.newCode = func() (string, error) { return GenerateCode(n) }
	}
}

// NewRegistry starts the registry loop; it stops when ctx is cancelled.
func NewRegistry(ctx context.Context, publisher Publisher, index RoomIndex, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		inbox:     make(chan registryMsg, 64),
		done:      make(chan struct{}),
		rooms:     make(map[string]*room),
		publisher: publisher,
		index:     index,
		newCode:   func() (string, error) { return GenerateCode(DefaultCodeLength) },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.loop(ctx)
	return r
}

// Done is closed once the loop has exited.
func (r *Registry) Done() <-chan struct{} { return r.done }

// CreateRoom registers a new room hosted by the caller and returns its code.
func (r *Registry) CreateRoom(ctx context.Context, transportID string, p domain.Participant, config domain.GameConfig) (string, error) {
	reply := make(chan createRoomReply, 1)
	if err := r.send(ctx, createRoomMsg{transportID: transportID, participant: p, config: config, reply: reply}); err != nil {
		return "", err
	}
	res, err := await(ctx, r.done, reply)
	if err != nil {
		return "", err
	}
	return res.roomID, res.err
}

// JoinRoom seats a participant or reattaches a returning stable id to a new connection.
func (r *Registry) JoinRoom(ctx context.Context, transportID, roomID string, p domain.Participant) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, joinRoomMsg{transportID: transportID, roomID: roomID, participant: p, reply: reply}); err != nil {
		return err
	}
	return awaitErr(ctx, r.done, reply)
}

// UpdateConfig overwrites the room configuration; host only.
func (r *Registry) UpdateConfig(ctx context.Context, transportID, roomID string, config domain.GameConfig) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, updateConfigMsg{transportID: transportID, roomID: roomID, config: config, reply: reply}); err != nil {
		return err
	}
	return awaitErr(ctx, r.done, reply)
}

// StartGame freezes the question set and moves the room to PLAYING; host only.
func (r *Registry) StartGame(ctx context.Context, transportID, roomID string, questions []domain.Question) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, startGameMsg{transportID: transportID, roomID: roomID, questions: questions, reply: reply}); err != nil {
		return err
	}
	return awaitErr(ctx, r.done, reply)
}

// SubmitAnswer applies a client-reported score delta to the caller's seat.
// Unknown rooms or seats are ignored. The delta is trusted as reported.
func (r *Registry) SubmitAnswer(ctx context.Context, transportID, roomID string, pointsDelta int) {
	reply := make(chan struct{}, 1)
	if err := r.send(ctx, submitAnswerMsg{transportID: transportID, roomID: roomID, delta: pointsDelta, reply: reply}); err != nil {
		return
	}
	_, _ = await(ctx, r.done, reply)
}

// Disconnect releases a connection from every room it is seated in.
func (r *Registry) Disconnect(ctx context.Context, transportID string) {
	reply := make(chan struct{}, 1)
	if err := r.send(ctx, disconnectMsg{transportID: transportID, reply: reply}); err != nil {
		return
	}
	_, _ = await(ctx, r.done, reply)
}

// Room returns a snapshot of the room, if registered.
func (r *Registry) Room(ctx context.Context, roomID string) (domain.RoomSnapshot, bool) {
	reply := make(chan *domain.RoomSnapshot, 1)
	if err := r.send(ctx, getRoomMsg{roomID: roomID, reply: reply}); err != nil {
		return domain.RoomSnapshot{}, false
	}
	snap, err := await(ctx, r.done, reply)
	if err != nil || snap == nil {
		return domain.RoomSnapshot{}, false
	}
	return *snap, true
}

// Rooms lists the ids of all active rooms, sorted.
func (r *Registry) Rooms(ctx context.Context) []string {
	reply := make(chan []string, 1)
	if err := r.send(ctx, listRoomsMsg{reply: reply}); err != nil {
		return nil
	}
	ids, _ := await(ctx, r.done, reply)
	return ids
}

func (r *Registry) send(ctx context.Context, msg registryMsg) error {
	select {
	case r.inbox <- msg:
		return nil
	case <-r.done:
		return ErrRegistryStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-done:
		return zero, ErrRegistryStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func awaitErr(ctx context.Context, done <-chan struct{}, reply <-chan error) error {
	err, waitErr := await(ctx, done, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func (r *Registry) loop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-r.inbox:
			switch msg := m.(type) {
			case createRoomMsg:
				id, err := r.createRoom(msg.transportID, msg.participant, msg.config)
				msg.reply <- createRoomReply{roomID: id, err: err}
			case joinRoomMsg:
				msg.reply <- r.joinRoom(msg.transportID, msg.roomID, msg.participant)
			case updateConfigMsg:
				msg.reply <- r.updateConfig(msg.transportID, msg.roomID, msg.config)
			case startGameMsg:
				msg.reply <- r.startGame(msg.transportID, msg.roomID, msg.questions)
			case submitAnswerMsg:
				r.submitAnswer(msg.transportID, msg.roomID, msg.delta)
				msg.reply <- struct{}{}
			case disconnectMsg:
				r.disconnect(msg.transportID)
				msg.reply <- struct{}{}
			case getRoomMsg:
				if rm, ok := r.rooms[msg.roomID]; ok {
					snap := rm.snapshot()
					msg.reply <- &snap
				} else {
					msg.reply <- nil
				}
			case listRoomsMsg:
				ids := make([]string, 0, len(r.rooms))
				for id := range r.rooms {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				msg.reply <- ids
			}
		}
	}
}

func validParticipant(p domain.Participant) bool {
	return strings.TrimSpace(p.StableID) != "" && strings.TrimSpace(p.DisplayName) != ""
}

// seat strips everything a client must not dictate about a new seat.
func seat(p domain.Participant, transportID string) domain.Participant {
	return domain.Participant{
		StableID:    p.StableID,
		TransportID: transportID,
		DisplayName: strings.TrimSpace(p.DisplayName),
		AvatarRef:   p.AvatarRef,
	}
}

func (r *Registry) createRoom(transportID string, p domain.Participant, config domain.GameConfig) (string, error) {
	if !validParticipant(p) {
		return "", domain.ErrInvalidParticipant
	}
	id, err := r.allocateCode()
	if err != nil {
		return "", err
	}
	rm := newRoom(id, transportID, config.Normalize(), seat(p, transportID))
	r.rooms[id] = rm

	r.publisher.Publish(transportID, domain.Event{Type: domain.EventRoomCreated, Payload: domain.RoomCreatedPayload{RoomID: id}})
	r.publisher.Publish(transportID, domain.Event{Type: domain.EventUpdatePlayers, Payload: rm.roster()})
	r.publisher.Publish(transportID, domain.Event{Type: domain.EventRoomConfigUpdated, Payload: rm.config})
	r.logger.Info("room created", zap.String("room", id), zap.String("host", p.StableID))
	return id, nil
}

func (r *Registry) allocateCode() (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := r.newCode()
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		if _, taken := r.rooms[code]; taken {
			continue
		}
		if r.index == nil {
			return code, nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		ok, err := r.index.Reserve(ctx, code)
		cancel()
		if err != nil {
			// The in-process map already guarantees uniqueness for this registry.
			r.logger.Warn("room index unavailable", zap.String("room", code), zap.Error(err))
			return code, nil
		}
		if ok {
			return code, nil
		}
	}
	return "", domain.ErrRoomCodeExhausted
}

func (r *Registry) joinRoom(transportID, roomID string, p domain.Participant) error {
	if !validParticipant(p) {
		return domain.ErrInvalidParticipant
	}
	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}

	if i := rm.seatByStableID(p.StableID); i >= 0 {
		r.reconnect(rm, i, transportID, p)
		return nil
	}

	if rm.phase == domain.PhasePlaying {
		return domain.ErrGameAlreadyStarted
	}
	if len(rm.players) >= domain.MaxParticipants {
		return domain.ErrRoomFull
	}
	if rm.nameTaken(p.DisplayName) {
		return domain.ErrDuplicateIdentity
	}

	s := seat(p, transportID)
	rm.players = append(rm.players, &s)
	r.broadcast(rm, domain.Event{Type: domain.EventUpdatePlayers, Payload: rm.roster()}, "")
	r.publisher.Publish(transportID, domain.Event{Type: domain.EventRoomConfigUpdated, Payload: rm.config})
	r.logger.Info("player joined", zap.String("room", roomID), zap.String("player", p.StableID), zap.Int("seats", len(rm.players)))
	return nil
}

func (r *Registry) reconnect(rm *room, i int, transportID string, p domain.Participant) {
	s := rm.players[i]
	previous := s.TransportID
	s.TransportID = transportID
	if name := strings.TrimSpace(p.DisplayName); name != "" {
		s.DisplayName = name
	}
	if p.AvatarRef != "" {
		s.AvatarRef = p.AvatarRef
	}
	if (previous != "" && previous == rm.host) || i == 0 {
		rm.host = transportID
	}

	r.publisher.Publish(transportID, domain.Event{Type: domain.EventUpdatePlayers, Payload: rm.roster()})
	r.publisher.Publish(transportID, domain.Event{Type: domain.EventRoomConfigUpdated, Payload: rm.config})
	if rm.phase == domain.PhasePlaying {
		r.publisher.Publish(transportID, domain.Event{Type: domain.EventGameStarted, Payload: rm.gameStarted()})
	}
	r.logger.Info("player reconnected",
		zap.String("room", rm.id),
		zap.String("player", s.StableID),
		zap.Bool("host", rm.host == transportID),
		zap.String("phase", string(rm.phase)),
	)
}

func (r *Registry) updateConfig(transportID, roomID string, config domain.GameConfig) error {
	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if rm.host != transportID {
		return domain.ErrUnauthorized
	}
	rm.config = config.Normalize()
	r.broadcast(rm, domain.Event{Type: domain.EventRoomConfigUpdated, Payload: rm.config}, transportID)
	return nil
}

func (r *Registry) startGame(transportID, roomID string, questions []domain.Question) error {
	rm, ok := r.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if rm.host != transportID {
		return domain.ErrUnauthorized
	}
	if rm.phase == domain.PhasePlaying {
		return domain.ErrGameAlreadyStarted
	}
	if len(questions) == 0 {
		return fmt.Errorf("%w: no questions", domain.ErrInvalidQuestionSet)
	}
	seen := make(map[string]struct{}, len(questions))
	for _, q := range questions {
		if !q.Valid() {
			return fmt.Errorf("%w: %q", domain.ErrInvalidQuestionSet, q.ID)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}

	rm.phase = domain.PhasePlaying
	rm.questions = append([]domain.Question(nil), questions...)
	r.broadcast(rm, domain.Event{Type: domain.EventGameStarted, Payload: rm.gameStarted()}, "")
	r.logger.Info("game started", zap.String("room", roomID), zap.Int("questions", len(questions)), zap.String("mode", string(rm.config.Mode)))
	return nil
}

func (r *Registry) submitAnswer(transportID, roomID string, delta int) {
	rm, ok := r.rooms[roomID]
	if !ok {
		return
	}
	i := rm.seatByTransportID(transportID)
	if i < 0 {
		return
	}
	s := rm.players[i]
	s.Score += delta
	s.QuestionsAnswered++
	if delta > 0 {
		s.Streak++
		s.CorrectAnswersCount++
	} else {
		s.Streak = 0
	}
	r.broadcast(rm, domain.Event{Type: domain.EventUpdatePlayers, Payload: rm.roster()}, "")
}

func (r *Registry) disconnect(transportID string) {
	for id, rm := range r.rooms {
		i := rm.seatByTransportID(transportID)
		if i < 0 {
			continue
		}
		if rm.phase == domain.PhasePlaying {
			// Seat kept for reconnection.
			r.logger.Info("player dropped mid-game", zap.String("room", id), zap.String("player", rm.players[i].StableID))
			continue
		}

		removed := rm.removeSeat(i)
		r.broadcast(rm, domain.Event{Type: domain.EventUpdatePlayers, Payload: rm.roster()}, "")
		if len(rm.players) == 0 {
			delete(r.rooms, id)
			r.releaseCode(id)
			r.logger.Info("room closed", zap.String("room", id))
			continue
		}
		if rm.host == transportID {
			rm.host = rm.players[0].TransportID
			r.logger.Info("host migrated", zap.String("room", id), zap.String("from", removed.StableID), zap.String("to", rm.players[0].StableID))
		}
	}
}

func (r *Registry) releaseCode(id string) {
	if r.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	if err := r.index.Release(ctx, id); err != nil {
		r.logger.Warn("release room code", zap.String("room", id), zap.Error(err))
	}
}

func (r *Registry) broadcast(rm *room, evt domain.Event, except string) {
	for _, p := range rm.players {
		if p.TransportID == "" || p.TransportID == except {
			continue
		}
		r.publisher.Publish(p.TransportID, evt)
	}
}
