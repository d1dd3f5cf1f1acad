package domain

import "errors"

var (
	// ErrNotFound is returned when a pack, quiz, question, topic, user or group is absent.
	ErrNotFound = errors.New("not found")
	// ErrQuizLocked is returned when the quiz was locked by reveal or by using all attempts.
	ErrQuizLocked = errors.New("quiz is locked")
	// ErrAttemptsExhausted is returned when all attempts for a quiz were used.
	ErrAttemptsExhausted = errors.New("maximum attempts reached")
	// ErrBonusNotUnlocked is returned for the bonus quiz until every regular quiz has an attempt.
	ErrBonusNotUnlocked = errors.New("complete all regular quizzes to unlock bonus")
	// ErrQuizClosed is returned when a past day's quiz is started, submitted or locked.
	ErrQuizClosed = errors.New("quiz day is over")
	// ErrInvalidSubmission indicates malformed answers or an out-of-range quiz index.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrAlreadyExists is returned when a daily pack was already generated for the date.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConcurrencyConflict means another writer advanced the quiz progress first.
	ErrConcurrencyConflict = errors.New("concurrent update conflict")
	// ErrNoSubmission is returned when answers are requested before any attempt was submitted.
	ErrNoSubmission = errors.New("submit at least one attempt first")
	// ErrRevealNotConfirmed is returned when revealing answers would lock the quiz
	// and the caller did not confirm.
	ErrRevealNotConfirmed = errors.New("revealing answers locks the quiz; confirmation required")
	// ErrInsufficientContent is returned when the content pool cannot fill a pack.
	ErrInsufficientContent = errors.New("not enough active content to build a pack")
)
