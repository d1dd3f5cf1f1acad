package domain

import (
	"fmt"
	"time"
)

const (
	// RegularQuizzes is the number of regular quizzes in a daily pack (indices 0-9).
	RegularQuizzes = 10
	// BonusQuizIndex is the slot index of the bonus quiz.
	BonusQuizIndex = 10
	// QuizzesPerPack counts the regular quizzes plus the bonus quiz.
	QuizzesPerPack = RegularQuizzes + 1
	// MaxAttempts is how many submissions a user gets per quiz.
	MaxAttempts = 3

	// Unanswered marks a question the user skipped or ran out of time on.
	Unanswered = "UNANSWERED"
)

// OptionKeys lists the valid answer keys in display order.
var OptionKeys = []string{"A", "B", "C", "D"}

// Supported languages.
const (
	LangEN = "en"
	LangSK = "sk"
)

// Localized holds one text per language code.
type Localized map[string]string

// Get returns the text for lang, falling back to English.
func (l Localized) Get(lang string) string {
	if text, ok := l[lang]; ok && text != "" {
		return text
	}
	return l[LangEN]
}

// NormalizeLang maps unsupported language codes to English.
func NormalizeLang(lang string) string {
	if lang == LangSK {
		return LangSK
	}
	return LangEN
}

// Topic groups questions of one subject.
type Topic struct {
	ID     string    `json:"id"`
	Name   Localized `json:"name"`
	Active bool      `json:"active"`
}

// Option is one of the four answer choices of a question.
type Option struct {
	Key   string    `json:"key"`
	Label Localized `json:"label"`
}

// Question models an MCQ question with exactly one correct option.
type Question struct {
	ID         string    `json:"id"`
	TopicID    string    `json:"topicId"`
	Text       Localized `json:"text"`
	Options    []Option  `json:"options"`
	CorrectKey string    `json:"correctKey"`
	ImageURL   string    `json:"imageUrl,omitempty"`
	Active     bool      `json:"active"`
}

// Validate checks that the options are exactly A-D and the correct key is one of them.
func (q Question) Validate() error {
	if len(q.Options) != len(OptionKeys) {
		return fmt.Errorf("question %s: expected %d options, got %d", q.ID, len(OptionKeys), len(q.Options))
	}
	seen := make(map[string]bool, len(q.Options))
	for _, opt := range q.Options {
		if !IsOptionKey(opt.Key) || seen[opt.Key] {
			return fmt.Errorf("question %s: options must include exactly A, B, C, D", q.ID)
		}
		seen[opt.Key] = true
	}
	if !seen[q.CorrectKey] {
		return fmt.Errorf("question %s: correct key %q is not an option", q.ID, q.CorrectKey)
	}
	return nil
}

// IsOptionKey reports whether key is one of A-D.
func IsOptionKey(key string) bool {
	for _, k := range OptionKeys {
		if k == key {
			return true
		}
	}
	return false
}

// QuizSlot binds one pack index to a topic and a fixed question set.
type QuizSlot struct {
	Index       int      `json:"index"`
	TopicID     string   `json:"topicId"`
	QuestionIDs []string `json:"questionIds"`
}

// DailyPack is the immutable set of quizzes for one calendar day.
// Slots 0-9 are the regular quizzes and slot 10 is the bonus quiz.
type DailyPack struct {
	Date        PackDate   `json:"date"`
	Slots       []QuizSlot `json:"slots"`
	GeneratedAt time.Time  `json:"generatedAt"`
}

// Slot returns the quiz slot at index.
func (p DailyPack) Slot(index int) (QuizSlot, error) {
	for _, slot := range p.Slots {
		if slot.Index == index {
			return slot, nil
		}
	}
	return QuizSlot{}, fmt.Errorf("pack %s quiz %d: %w", p.Date, index, ErrNotFound)
}

// TopicIDs returns the topics used by every slot of the pack.
func (p DailyPack) TopicIDs() []string {
	ids := make([]string, 0, len(p.Slots))
	for _, slot := range p.Slots {
		ids = append(ids, slot.TopicID)
	}
	return ids
}

// ValidQuizIndex reports whether index addresses a regular or bonus quiz.
func ValidQuizIndex(index int) bool {
	return index >= 0 && index <= BonusQuizIndex
}

// User is the identity view supplied by the auth collaborator.
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Role     string `json:"role"`
}
