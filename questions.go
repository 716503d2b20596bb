package main

import (
	"context"
	"errors"
	"sync"
)

// ErrNoQuestions is returned when the current question queue has been played
// through. The screen decides what to do with the end of the set.
var ErrNoQuestions = errors.New("question queue exhausted")

// Question is one four-choice quiz entry as uploaded by the screen or taken
// from the built-in bank. The answer index and explanation are only ever
// shown to clients once the round is revealed.
type Question struct {
	Text        string   `json:"question"`
	Choices     []string `json:"choices"`
	AnswerIndex int      `json:"answer_index"`
	Explanation string   `json:"explanation,omitempty"`
}

// QuestionSource yields the next question for a round. Fetching may involve
// a slow upstream (a generated-question pipeline, for instance), so it takes
// a context and is always called off the hub loop: a stalled source must
// never delay answer admission for the round already in play.
type QuestionSource interface {
	Next(ctx context.Context) (Question, error)
}

// questionQueue serves a finite, ordered batch of questions. It starts out
// loaded with the built-in bank and is replaced wholesale by a set_questions
// upload.
type questionQueue struct {
	mu        sync.Mutex
	questions []Question
	index     int
}

func newQuestionQueue() *questionQueue {
	return &questionQueue{
		questions: fallbackQuestions,
	}
}

// SetBatch replaces the queue contents and rewinds to the first entry.
// Returns the number of questions accepted.
func (q *questionQueue) SetBatch(batch []Question) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.questions = batch
	q.index = 0

	return len(batch)
}

// Reset discards any uploaded batch and rewinds to the built-in bank.
func (q *questionQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.questions = fallbackQuestions
	q.index = 0
}

// Next pops the next question in upload order.
func (q *questionQueue) Next(_ context.Context) (Question, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.index >= len(q.questions) {
		return Question{}, ErrNoQuestions
	}

	next := q.questions[q.index]
	q.index++

	return next, nil
}

// Remaining reports how many questions are left to play.
func (q *questionQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.questions) - q.index
}

// fallbackQuestions keeps an event running when no question set has been
// uploaded and no upstream source is wired in.
var fallbackQuestions = []Question{
	{
		Text:        "Which planet in the solar system has the shortest day?",
		Choices:     []string{"Mercury", "Jupiter", "Mars", "Neptune"},
		AnswerIndex: 1,
		Explanation: "Jupiter spins once in just under ten hours, faster than any other planet despite being the largest.",
	},
	{
		Text:        "What was the first animal to orbit the Earth?",
		Choices:     []string{"A chimpanzee", "A tortoise", "A dog", "A mouse"},
		AnswerIndex: 2,
		Explanation: "Laika the dog flew aboard Sputnik 2 in November 1957, years before any primate made orbit.",
	},
	{
		Text:        "Which of these countries has the most time zones?",
		Choices:     []string{"Russia", "United States", "France", "China"},
		AnswerIndex: 2,
		Explanation: "Counting overseas territories, France spans twelve time zones. China, famously, uses one.",
	},
	{
		Text:        "Honey found in ancient Egyptian tombs was still edible. Roughly how old was it?",
		Choices:     []string{"300 years", "1,000 years", "3,000 years", "30,000 years"},
		AnswerIndex: 2,
		Explanation: "Sealed honey is effectively immortal. Jars from tombs around 3,000 years old were found unspoiled.",
	},
	{
		Text:        "Which instrument did the Voyager Golden Record famously include a recording of?",
		Choices:     []string{"A theremin", "A shakuhachi", "A didgeridoo", "A hurdy-gurdy"},
		AnswerIndex: 1,
		Explanation: "The Japanese bamboo flute piece \"Tsuru no Sugomori\" made the cut alongside Bach and Chuck Berry.",
	},
	{
		Text:        "What color is a polar bear's skin?",
		Choices:     []string{"White", "Pink", "Black", "Grey"},
		AnswerIndex: 2,
		Explanation: "Black skin under translucent hollow fur. The white is an optical effect, not a pigment.",
	},
	{
		Text:        "The shortest war in recorded history lasted about how long?",
		Choices:     []string{"40 minutes", "4 hours", "4 days", "4 weeks"},
		AnswerIndex: 0,
		Explanation: "The Anglo-Zanzibar War of 1896 was over in roughly 38 to 45 minutes, depending on who kept time.",
	},
	{
		Text:        "Which of these is the only food that never spoils on a supermarket shelf?",
		Choices:     []string{"White rice", "Honey", "Dried pasta", "Canned beans"},
		AnswerIndex: 1,
		Explanation: "Everything else eventually degrades. Honey's low moisture and acidity make it indefinitely stable.",
	},
}
