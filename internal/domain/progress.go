package domain

import (
	"math"
	"time"
)

// QuizKey addresses one quiz of one user's daily pack.
type QuizKey struct {
	UserID    string   `json:"userId"`
	Date      PackDate `json:"date"`
	QuizIndex int      `json:"quizIndex"`
}

// Score is the outcome of grading one attempt. Percentage keeps full precision.
// Details is only filled for the submitting caller and is not persisted.
type Score struct {
	CorrectCount int              `json:"correctCount"`
	Total        int              `json:"total"`
	Percentage   float64          `json:"percentage"`
	Details      []QuestionResult `json:"details,omitempty"`
}

// QuestionResult tells whether one question was answered correctly.
type QuestionResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
}

// DisplayPercentage is the rounded value shown to users.
func (s Score) DisplayPercentage() int {
	return DisplayPercent(s.Percentage)
}

// DisplayPercent rounds half up to an integer percentage.
func DisplayPercent(p float64) int {
	return int(math.Floor(p + 0.5))
}

// BestScore is the best attempt so far: highest percentage, then lowest time.
type BestScore struct {
	Percentage float64 `json:"percentage"`
	TimeMs     int64   `json:"timeMs"`
}

// Beats reports whether b is strictly better than other.
func (b BestScore) Beats(other BestScore) bool {
	if b.Percentage != other.Percentage {
		return b.Percentage > other.Percentage
	}
	return b.TimeMs < other.TimeMs
}

// QuizProgress is the per-(user, date, quiz) state owned by the attempt state machine.
type QuizProgress struct {
	QuizKey
	AttemptCount    int        `json:"attemptCount"`
	Locked          bool       `json:"locked"`
	RevealedAnswers bool       `json:"revealedAnswers"`
	Best            *BestScore `json:"best,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Exhausted reports whether every attempt was used.
func (p QuizProgress) Exhausted() bool {
	return p.AttemptCount >= MaxAttempts
}

// AttemptsRemaining returns how many submissions are left.
func (p QuizProgress) AttemptsRemaining() int {
	if p.Locked || p.AttemptCount >= MaxAttempts {
		return 0
	}
	return MaxAttempts - p.AttemptCount
}

// QuizStatus is the user-facing state of a quiz in the pack overview.
type QuizStatus string

const (
	StatusAvailable  QuizStatus = "available"
	StatusInProgress QuizStatus = "in_progress"
	StatusCompleted  QuizStatus = "completed"
	StatusLocked     QuizStatus = "locked"
)

// Status derives the overview status of a quiz.
func (p QuizProgress) Status() QuizStatus {
	switch {
	case p.RevealedAnswers:
		return StatusLocked
	case p.Exhausted():
		return StatusCompleted
	case p.Locked:
		return StatusLocked
	case p.AttemptCount > 0:
		return StatusInProgress
	default:
		return StatusAvailable
	}
}

// Attempt is one graded submission.
type Attempt struct {
	QuizKey
	ID            string            `json:"id"`
	AttemptNumber int               `json:"attemptNumber"`
	Answers       map[string]string `json:"answers"`
	TimeMs        int64             `json:"timeMs"`
	Score         Score             `json:"score"`
	FinishedAt    time.Time         `json:"finishedAt"`
}

// LeaderboardEntry is a ranked row of a per-quiz leaderboard.
type LeaderboardEntry struct {
	Rank              int     `json:"rank"`
	UserID            string  `json:"userId"`
	Nickname          string  `json:"nickname"`
	Percentage        float64 `json:"percentage"`
	DisplayPercentage int     `json:"displayPercentage"`
	TimeMs            int64   `json:"timeMs"`
}

// DailyLeaderboardEntry is a ranked row of the daily aggregate leaderboard.
type DailyLeaderboardEntry struct {
	Rank                 int     `json:"rank"`
	UserID               string  `json:"userId"`
	Nickname             string  `json:"nickname"`
	QuizzesCompleted     int     `json:"quizzesCompleted"`
	AvgPercentage        float64 `json:"avgPercentage"`
	DisplayAvgPercentage int     `json:"displayAvgPercentage"`
	TotalTimeMs          int64   `json:"totalTimeMs"`
}

// Leaderboard is an ordered snapshot of one board. QuizIndex is nil for the daily board.
type Leaderboard struct {
	Date      PackDate                `json:"date"`
	QuizIndex *int                    `json:"quizIndex,omitempty"`
	Entries   []LeaderboardEntry      `json:"entries,omitempty"`
	Daily     []DailyLeaderboardEntry `json:"daily,omitempty"`
	UpdatedAt time.Time               `json:"updatedAt"`
}

// EarnedBadge records that a user earned a badge. Created once, never removed.
type EarnedBadge struct {
	UserID    string    `json:"userId"`
	BadgeID   string    `json:"badgeId"`
	EarnedAt  time.Time `json:"earnedAt"`
	QuizIndex *int      `json:"quizIndex,omitempty"`
}
