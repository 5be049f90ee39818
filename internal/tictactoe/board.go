package tictactoe

import (
	"fmt"

	"github.com/roomplay/tictactoe-room-backend/internal/apperror"
)

const (
	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	// ResultOngoing is what Evaluate returns while the game is still open.
	ResultOngoing = ""
)

var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a 3x3 grid in row-major order. Cells hold PlayerX, PlayerO or EmptyCell.
type Board [9]string

func EmptyBoard() Board {
	return Board{}
}

// ApplyMove returns a copy of the board with the mark placed at cell.
// The input board is never mutated.
func ApplyMove(board Board, cell int, mark string) (Board, error) {
	if cell < 0 || cell >= len(board) {
		return board, fmt.Errorf("%w: cell %d", apperror.ErrInvalidCell, cell)
	}

	if Evaluate(board) != ResultOngoing {
		return board, apperror.ErrGameFinished
	}

	if board[cell] != EmptyCell {
		return board, apperror.ErrCellOccupied
	}

	board[cell] = mark

	return board, nil
}

// Evaluate - checks the board for a terminal result: PlayerX or PlayerO on a
// completed line, PlayerTie when all cells are filled, ResultOngoing otherwise.
func Evaluate(board Board) string {
	for _, combo := range WinCombos {
		a, b, c := board[combo[0]], board[combo[1]], board[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a
		}
	}

	for _, cell := range board {
		if cell == EmptyCell {
			return ResultOngoing
		}
	}

	return PlayerTie
}

func ToggleMark(currentMark string) string {
	if currentMark == PlayerX {
		return PlayerO
	}
	return PlayerX
}
