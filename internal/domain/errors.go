package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room id is not registered.
	ErrRoomNotFound = errors.New("room not found")
	// ErrGameAlreadyStarted rejects new identities once a room is playing.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrRoomFull is returned when all seats of a room are taken.
	ErrRoomFull = errors.New("room is full")
	// ErrUnauthorized is returned when a non-host attempts a host-only action.
	ErrUnauthorized = errors.New("only the host can do that")
	// ErrDuplicateIdentity indicates a display name collision outside reconnection.
	ErrDuplicateIdentity = errors.New("name already taken in this room")
	// ErrContentGenerationFailed is recovered locally with a backup batch.
	ErrContentGenerationFailed = errors.New("content generation failed")
	// ErrTransportUnavailable marks submissions attempted while disconnected.
	ErrTransportUnavailable = errors.New("transport unavailable")
	// ErrInvalidParticipant is returned when a participant lacks a stable id or name.
	ErrInvalidParticipant = errors.New("participant id and name are required")
	// ErrDuplicateQuestion rejects question sets that reuse an id.
	ErrDuplicateQuestion = errors.New("duplicate question id")
	// ErrInvalidQuestionSet rejects an empty question set or an unplayable question.
	ErrInvalidQuestionSet = errors.New("invalid question set")
	// ErrRoomCodeExhausted is returned when no free room code could be allocated.
	ErrRoomCodeExhausted = errors.New("could not allocate a room code")
	// ErrBackupNotFound indicates no backup batch is stored for a topic.
	ErrBackupNotFound = errors.New("backup batch not found")
)
