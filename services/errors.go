package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Sentinel errors returned by the service layer. The Endpoint methods map
// them onto HTTP statuses with errorResponse; everything unrecognized is a 500.
var (
	ErrMatchNotFound    = errors.New("match not found")
	ErrNotParticipant   = errors.New("caller is not a participant in this match")
	ErrMatchNotPending  = errors.New("match is not awaiting acceptance")
	ErrMatchNotActive   = errors.New("match is not active")
	ErrMatchNotFinished = errors.New("match is not finished yet")
	ErrSelfChallenge    = errors.New("cannot challenge yourself")
	ErrNotChallenged    = errors.New("only the challenged player can accept")

	// Conflict-class: retrying clients should treat this as success-equivalent.
	ErrAlreadyAnswered = errors.New("answer already recorded for this question")

	ErrInvalidQuestion    = errors.New("question number out of range")
	ErrQuestionNotCurrent = errors.New("question is ahead of the current question")
	ErrDeadlineExceeded   = errors.New("question deadline has passed")

	ErrForfeitPending   = errors.New("a forfeit request is already pending")
	ErrNoForfeitPending = errors.New("no forfeit request is pending")
	ErrOwnForfeit       = errors.New("cannot respond to your own forfeit request")
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrMatchNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrNotParticipant),
		errors.Is(err, ErrNotChallenged),
		errors.Is(err, ErrOwnForfeit):
		return fiber.StatusForbidden
	case errors.Is(err, ErrForfeitPending),
		errors.Is(err, ErrNoForfeitPending),
		errors.Is(err, ErrQuestionNotCurrent):
		return fiber.StatusConflict
	case errors.Is(err, ErrMatchNotPending),
		errors.Is(err, ErrMatchNotActive),
		errors.Is(err, ErrMatchNotFinished),
		errors.Is(err, ErrSelfChallenge),
		errors.Is(err, ErrAlreadyAnswered),
		errors.Is(err, ErrInvalidQuestion),
		errors.Is(err, ErrDeadlineExceeded):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func errorResponse(c *fiber.Ctx, err error) error {
	status := statusForError(err)
	if status == fiber.StatusInternalServerError {
		return c.Status(status).JSON(fiber.Map{"error": "internal error", "details": err.Error()})
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
