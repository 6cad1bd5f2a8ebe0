package app

import (
	"strings"

	"trivia-arena/internal/domain"
)

// room is owned exclusively by the registry loop; no locking.
type room struct {
	id        string
	host      string
	phase     domain.Phase
	config    domain.GameConfig
	players   []*domain.Participant
	questions []domain.Question
}

func newRoom(id, hostTransportID string, config domain.GameConfig, first domain.Participant) *room {
	seat := first
	seat.TransportID = hostTransportID
	return &room{
		id:      id,
		host:    hostTransportID,
		phase:   domain.PhaseLobby,
		config:  config,
		players: []*domain.Participant{&seat},
	}
}

func (r *room) seatByStableID(stableID string) int {
	for i, p := range r.players {
		if p.StableID == stableID {
			return i
		}
	}
	return -1
}

func (r *room) seatByTransportID(transportID string) int {
	if transportID == "" {
		return -1
	}
	for i, p := range r.players {
		if p.TransportID == transportID {
			return i
		}
	}
	return -1
}

func (r *room) nameTaken(name string) bool {
	for _, p := range r.players {
		if strings.EqualFold(strings.TrimSpace(p.DisplayName), strings.TrimSpace(name)) {
			return true
		}
	}
	return false
}

func (r *room) removeSeat(i int) domain.Participant {
	removed := *r.players[i]
	r.players = append(r.players[:i], r.players[i+1:]...)
	return removed
}

func (r *room) roster() []domain.Participant {
	out := make([]domain.Participant, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *room) gameStarted() domain.GameStartedPayload {
	return domain.GameStartedPayload{
		RoomID:    r.id,
		Questions: append([]domain.Question(nil), r.questions...),
		Players:   r.roster(),
		Config:    r.config,
	}
}

func (r *room) snapshot() domain.RoomSnapshot {
	return domain.RoomSnapshot{
		ID:              r.id,
		HostTransportID: r.host,
		Phase:           r.phase,
		Config:          r.config,
		Players:         r.roster(),
		Questions:       append([]domain.Question(nil), r.questions...),
	}
}
