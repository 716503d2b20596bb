package main

import (
	"time"

	"github.com/google/uuid"
)

type roundPhase string

const (
	phaseWaiting  roundPhase = "waiting"
	phaseActive   roundPhase = "active"
	phaseRevealed roundPhase = "revealed"
)

type revealPolicy string

const (
	// revealManual keeps the round open until the screen sends close_round.
	revealManual revealPolicy = "manual"
	// revealInstant flips to revealed the moment a correct answer lands, or
	// once every connected player has answered without anyone being correct.
	revealInstant revealPolicy = "instant"
)

// revealStrategy decides when an active round transitions to revealed. Both
// policies share the rest of the state machine.
type revealStrategy interface {
	onAnswerAccepted(r *Round, connectedPlayers int) bool
	onCloseRequested(r *Round) bool
}

type manualReveal struct{}

func (manualReveal) onAnswerAccepted(*Round, int) bool { return false }
func (manualReveal) onCloseRequested(*Round) bool      { return true }

type instantReveal struct{}

func (instantReveal) onAnswerAccepted(r *Round, connectedPlayers int) bool {
	if r.winnerToken != "" {
		return true
	}
	return connectedPlayers > 0 && r.totalAnswers >= connectedPlayers
}

func (instantReveal) onCloseRequested(*Round) bool { return true }

func strategyFor(policy revealPolicy) revealStrategy {
	if policy == revealInstant {
		return instantReveal{}
	}
	return manualReveal{}
}

type playerAnswer struct {
	choiceIndex int
	receivedAt  time.Time
}

// Round is the authoritative record for one question. It is owned by the
// hub's run loop: every mutation happens on that single goroutine, in arrival
// order, which is what makes "first correct answer wins" well-defined. Client
// timestamps are never consulted.
type Round struct {
	questionID  string
	question    string
	choices     []string
	answerIndex int
	explanation string

	phase    roundPhase
	answered map[string]playerAnswer // token -> admitted answer

	winnerToken string
	winnerName  string
	winnerAt    time.Time

	totalAnswers   int
	correctAnswers int
}

func newRound(q Question) *Round {
	return &Round{
		questionID:  uuid.NewString(),
		question:    q.Text,
		choices:     q.Choices,
		answerIndex: q.AnswerIndex,
		explanation: q.Explanation,
		phase:       phaseActive,
		answered:    make(map[string]playerAnswer),
	}
}

// submitAnswer admits or drops a vote. Drops are silent: a stale question ID,
// a duplicate, a closed round, or an out-of-range choice are all expected
// race noise from clients, not faults. On admission it updates the tallies
// and, if this is the first correct answer, records the winner. The winner
// fields are monotonic for the life of the round.
func (r *Round) submitAnswer(token, name, questionID string, choiceIndex int) (accepted, wonNow bool) {
	if r.phase != phaseActive {
		return false, false
	}
	if questionID != r.questionID {
		return false, false
	}
	if _, dup := r.answered[token]; dup {
		return false, false
	}
	if choiceIndex < 0 || choiceIndex >= len(r.choices) {
		return false, false
	}

	now := time.Now()
	r.answered[token] = playerAnswer{
		choiceIndex: choiceIndex,
		receivedAt:  now,
	}
	r.totalAnswers++

	if choiceIndex != r.answerIndex {
		return true, false
	}

	r.correctAnswers++
	if r.winnerToken == "" {
		r.winnerToken = token
		r.winnerName = name
		r.winnerAt = now
		return true, true
	}

	return true, false
}

// close moves the round to revealed. Calling it again is a no-op; tallies and
// winner fields stay exactly as last computed.
func (r *Round) close() {
	if r.phase == phaseActive {
		r.phase = phaseRevealed
	}
}

// choiceCounts tallies admitted votes per choice, for the live bar chart.
func (r *Round) choiceCounts() [choiceCount]int {
	var counts [choiceCount]int
	for _, ans := range r.answered {
		if ans.choiceIndex >= 0 && ans.choiceIndex < choiceCount {
			counts[ans.choiceIndex]++
		}
	}
	return counts
}

const choiceCount = 4

// snapshot builds the outward-facing projection of a round, which may be nil
// between rounds. The answer index and explanation serialize as null unless
// the phase is revealed; clients never see them early, no matter what they
// ask for.
func snapshot(r *Round, totalPlayers int) StateMessage {
	if r == nil {
		return StateMessage{
			Type:         "state",
			Choices:      []string{},
			TotalPlayers: totalPlayers,
			Phase:        string(phaseWaiting),
		}
	}

	msg := StateMessage{
		Type:           "state",
		QuestionID:     r.questionID,
		Question:       r.question,
		Choices:        r.choices,
		WinnerToken:    r.winnerToken,
		WinnerName:     r.winnerName,
		TotalAnswers:   r.totalAnswers,
		CorrectAnswers: r.correctAnswers,
		TotalPlayers:   totalPlayers,
		Phase:          string(r.phase),
	}

	if r.phase == phaseRevealed {
		answerIndex := r.answerIndex
		explanation := r.explanation
		msg.AnswerIndex = &answerIndex
		msg.Explanation = &explanation
	}

	return msg
}
