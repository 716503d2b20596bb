package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The hub handlers are exercised directly: in production they only ever run
// on the hub's single run goroutine, so calling them from the test goroutine
// preserves the same one-event-at-a-time semantics.

func newTestHub(policy revealPolicy) *Hub {
	return newHub(&Config{
		revealPolicy: string(policy),
		recountDelay: time.Millisecond,
	})
}

func addConn(h *Hub) *Client {
	c := &Client{send: make(chan any, 64)}
	h.handleRegister(c)
	return c
}

func drain(c *Client) []any {
	var out []any
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func messagesOf[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func joinPlayer(t *testing.T, h *Hub, c *Client, token string) JoinedMessage {
	t.Helper()

	drain(c)
	h.handleJoin(joinRequest{client: c, msg: ClientMessage{Type: "join", Token: token}})

	joined := messagesOf[JoinedMessage](drain(c))
	require.Len(t, joined, 1)
	return joined[0]
}

func answer(h *Hub, c *Client, questionID string, choice int) {
	h.handleAnswer(answerRequest{client: c, msg: ClientMessage{
		Type:        "answer",
		QuestionID:  questionID,
		ChoiceIndex: choice,
	}})
}

func control(h *Hub, c *Client, msg ClientMessage) {
	h.handleControl(context.Background(), controlRequest{client: c, msg: msg})
}

func TestJoinAssignsDistinctNames(t *testing.T) {
	h := newTestHub(revealManual)

	a := addConn(h)
	b := addConn(h)

	joinedA := joinPlayer(t, h, a, "")
	joinedB := joinPlayer(t, h, b, "")

	assert.NotEmpty(t, joinedA.Token)
	assert.NotEmpty(t, joinedB.Token)
	assert.NotEqual(t, joinedA.Token, joinedB.Token)
	assert.NotEqual(t, joinedA.Name, joinedB.Name)
	assert.Equal(t, 2, h.playerCount())
}

func TestJoinSendsPrivateSnapshot(t *testing.T) {
	h := newTestHub(revealManual)
	c := addConn(h)

	h.handleJoin(joinRequest{client: c, msg: ClientMessage{Type: "join"}})

	msgs := drain(c)
	states := messagesOf[StateMessage](msgs)
	require.Len(t, states, 1)
	assert.Equal(t, string(phaseWaiting), states[0].Phase)

	counts := messagesOf[AnswerCountMessage](msgs)
	require.Len(t, counts, 1)
	assert.Equal(t, 1, counts[0].TotalPlayers)
}

func TestJoinPoolExhausted(t *testing.T) {
	h := newTestHub(revealManual)
	h.names = newNameAllocator([]string{"Fox"})

	first := addConn(h)
	second := addConn(h)

	joinPlayer(t, h, first, "")

	h.handleJoin(joinRequest{client: second, msg: ClientMessage{Type: "join"}})

	errs := messagesOf[SimpleMessage](drain(second))
	require.Len(t, errs, 1)
	assert.Equal(t, "error", errs[0].Type)
	assert.NotEmpty(t, errs[0].Message)

	// The rejected connection never becomes a player; the game continues.
	assert.Equal(t, 1, h.playerCount())
}

func TestRejoinResumesIdentity(t *testing.T) {
	h := newTestHub(revealManual)

	original := addConn(h)
	joined := joinPlayer(t, h, original, "")

	h.handleUnregister(original)

	comeback := addConn(h)
	rejoined := joinPlayer(t, h, comeback, joined.Token)

	assert.Equal(t, joined.Token, rejoined.Token)
	assert.Equal(t, joined.Name, rejoined.Name)
	assert.Len(t, h.players, 1)
}

func TestScreenJoinResetsRound(t *testing.T) {
	h := newTestHub(revealManual)
	h.round = newRound(testQuestion())

	screen := addConn(h)
	h.handleJoin(joinRequest{client: screen, msg: ClientMessage{Type: "join", Token: screenToken}})
	msgs := drain(screen)

	joined := messagesOf[JoinedMessage](msgs)
	require.Len(t, joined, 1)
	assert.Equal(t, screenToken, joined[0].Token)
	assert.Equal(t, "Screen", joined[0].Name)
	assert.Nil(t, h.round)

	states := messagesOf[StateMessage](msgs)
	require.NotEmpty(t, states)
	assert.Equal(t, string(phaseWaiting), states[len(states)-1].Phase)
}

func TestManualRoundFlow(t *testing.T) {
	h := newTestHub(revealManual)

	screen := addConn(h)
	playerA := addConn(h)
	playerB := addConn(h)

	joinPlayer(t, h, screen, screenToken)
	joinPlayer(t, h, playerA, "")
	nameB := joinPlayer(t, h, playerB, "").Name

	h.handleOpen(openResult{client: screen, question: testQuestion()})
	require.NotNil(t, h.round)
	questionID := h.round.questionID

	drain(screen)
	drain(playerA)
	drain(playerB)

	answer(h, playerA, questionID, 1) // wrong
	answer(h, playerB, questionID, 2) // correct, first
	answer(h, playerA, questionID, 2) // duplicate, dropped

	counts := messagesOf[AnswerCountMessage](drain(screen))
	require.Len(t, counts, 2, "the duplicate must not produce a tally delta")
	assert.Equal(t, 2, counts[1].TotalAnswers)
	assert.Equal(t, 1, counts[1].CorrectAnswers)
	assert.Equal(t, [choiceCount]int{0, 1, 1, 0}, counts[1].ChoiceCounts)

	// Manual policy: still open until the screen closes the round.
	assert.Equal(t, phaseActive, h.round.phase)

	control(h, screen, ClientMessage{Type: "close_round"})

	assert.Equal(t, phaseRevealed, h.round.phase)

	msgs := drain(playerA)
	winners := messagesOf[WinnerMessage](msgs)
	require.Len(t, winners, 1)
	assert.Equal(t, nameB, winners[0].Name)

	states := messagesOf[StateMessage](msgs)
	require.Len(t, states, 1)
	assert.Equal(t, string(phaseRevealed), states[0].Phase)
	require.NotNil(t, states[0].AnswerIndex)
	assert.Equal(t, 2, *states[0].AnswerIndex)
}

func TestRoundControlsIgnoredFromPlayers(t *testing.T) {
	h := newTestHub(revealManual)

	player := addConn(h)
	joinPlayer(t, h, player, "")

	h.handleOpen(openResult{question: testQuestion()})

	control(h, player, ClientMessage{Type: "close_round"})
	assert.Equal(t, phaseActive, h.round.phase)

	control(h, player, ClientMessage{Type: "reset_game"})
	assert.NotNil(t, h.round)
}

func TestAnswersBeforeJoinIgnored(t *testing.T) {
	h := newTestHub(revealManual)
	h.handleOpen(openResult{question: testQuestion()})

	stranger := addConn(h)
	answer(h, stranger, h.round.questionID, 2)

	assert.Equal(t, 0, h.round.totalAnswers)
}

func TestStaleAnswerAfterNewRoundIgnored(t *testing.T) {
	h := newTestHub(revealManual)

	player := addConn(h)
	joinPlayer(t, h, player, "")

	h.handleOpen(openResult{question: testQuestion()})
	staleID := h.round.questionID

	h.handleOpen(openResult{question: testQuestion()})

	answer(h, player, staleID, 2)

	assert.Equal(t, 0, h.round.totalAnswers)
}

func TestInstantRevealOnFirstCorrect(t *testing.T) {
	h := newTestHub(revealInstant)

	player := addConn(h)
	name := joinPlayer(t, h, player, "").Name

	h.handleOpen(openResult{question: testQuestion()})
	drain(player)

	answer(h, player, h.round.questionID, 2)

	assert.Equal(t, phaseRevealed, h.round.phase)

	msgs := drain(player)
	winners := messagesOf[WinnerMessage](msgs)
	require.Len(t, winners, 1)
	assert.Equal(t, name, winners[0].Name)

	states := messagesOf[StateMessage](msgs)
	require.Len(t, states, 1)
	assert.Equal(t, string(phaseRevealed), states[0].Phase)
}

func TestInstantRevealWhenEveryoneAnsweredWrong(t *testing.T) {
	h := newTestHub(revealInstant)

	playerA := addConn(h)
	playerB := addConn(h)
	joinPlayer(t, h, playerA, "")
	joinPlayer(t, h, playerB, "")

	h.handleOpen(openResult{question: testQuestion()})
	questionID := h.round.questionID
	drain(playerA)

	answer(h, playerA, questionID, 0)
	assert.Equal(t, phaseActive, h.round.phase)

	answer(h, playerB, questionID, 1)
	assert.Equal(t, phaseRevealed, h.round.phase)

	assert.Empty(t, messagesOf[WinnerMessage](drain(playerA)))
}

func TestSetQuestionsFiltersMalformed(t *testing.T) {
	h := newTestHub(revealManual)

	screen := addConn(h)
	joinPlayer(t, h, screen, screenToken)

	control(h, screen, ClientMessage{Type: "set_questions", Questions: []Question{
		{Text: "good", Choices: []string{"a", "b", "c", "d"}, AnswerIndex: 1},
		{Text: "too few choices", Choices: []string{"a", "b"}, AnswerIndex: 0},
		{Text: "bad index", Choices: []string{"a", "b", "c", "d"}, AnswerIndex: 7},
	}})

	acks := messagesOf[QuestionsSetMessage](drain(screen))
	require.Len(t, acks, 1)
	assert.Equal(t, 1, acks[0].Count)
	assert.Equal(t, 1, h.source.Remaining())
}

func TestResetGameClearsRoundAndQueue(t *testing.T) {
	h := newTestHub(revealManual)

	screen := addConn(h)
	joinPlayer(t, h, screen, screenToken)

	control(h, screen, ClientMessage{Type: "set_questions", Questions: []Question{
		{Text: "custom", Choices: []string{"a", "b", "c", "d"}, AnswerIndex: 0},
	}})
	h.handleOpen(openResult{client: screen, question: testQuestion()})

	control(h, screen, ClientMessage{Type: "reset_game"})

	assert.Nil(t, h.round)
	assert.Equal(t, len(fallbackQuestions), h.source.Remaining())

	states := messagesOf[StateMessage](drain(screen))
	require.NotEmpty(t, states)
	assert.Equal(t, string(phaseWaiting), states[len(states)-1].Phase)
}

func TestQueueExhaustionNotifiesScreenOnly(t *testing.T) {
	h := newTestHub(revealManual)

	screen := addConn(h)
	player := addConn(h)
	joinPlayer(t, h, screen, screenToken)
	joinPlayer(t, h, player, "")

	h.handleOpen(openResult{client: screen, err: ErrNoQuestions})

	notices := messagesOf[SimpleMessage](drain(screen))
	require.Len(t, notices, 1)
	assert.Equal(t, "no_more_questions", notices[0].Type)

	assert.Empty(t, messagesOf[SimpleMessage](drain(player)))
}

func TestDisconnectSchedulesDebouncedRecount(t *testing.T) {
	h := newTestHub(revealManual)

	player := addConn(h)
	joinPlayer(t, h, player, "")

	h.handleUnregister(player)

	select {
	case <-h.recounts:
	case <-time.After(time.Second):
		t.Fatal("no recount scheduled after player disconnect")
	}

	assert.Equal(t, 0, h.playerCount())
}

func TestSlowClientIsEvicted(t *testing.T) {
	h := newTestHub(revealManual)

	slow := &Client{send: make(chan any)} // no buffer, never read
	h.handleRegister(slow)

	h.sendOrEvict(slow, SimpleMessage{Type: "error"})

	assert.False(t, h.clients[slow])

	// Further sends to the evicted client are no-ops, not panics.
	h.sendOrEvict(slow, SimpleMessage{Type: "error"})
}
