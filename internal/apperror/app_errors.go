package apperror

import "errors"

var (
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrCellOccupied     = errors.New("cell is already occupied")
	ErrInvalidCell      = errors.New("invalid cell index")

	ErrRoomFull      = errors.New("room is full")
	ErrRoomNotFound  = errors.New("room not found")
	ErrRoomAbandoned = errors.New("room was abandoned")
	ErrAlreadyJoined = errors.New("connection already joined a room")
	ErrEmptyMessage  = errors.New("message text is empty")
)
