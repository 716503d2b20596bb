// Hayaoshi Quiz
//
// One "screen" connection drives a stream of four-choice questions; player
// connections race to answer them. The server is the sole arbiter of the
// buzzer: the first correct answer admitted in arrival order wins the round.
//
// Features:
// - Single process-wide game over one WebSocket endpoint: /ws
// - Players identified by an opaque token, persisted client-side for reconnects
// - Display names drawn from a fixed animal-name pool, unique per event
// - Screen role claimed with the sentinel token "__screen__"
// - Round lifecycle: waiting -> active -> revealed, driven by screen controls
// - Duplicate, stale, and out-of-range answers dropped silently
// - Correct answer and explanation withheld from all payloads until reveal
// - Lightweight answer_count deltas with per-choice tallies after every vote
// - Bulk question upload via set_questions, built-in bank as fallback
// - Manual-close or instant-reveal policy, selected by flag
// - Disconnect recounts debounced to ride out connect/disconnect churn
// - In-browser QR code for the join link, backed by go-qrcode

package main

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// screenToken is the sentinel a screen page sends in place of a player token.
const screenToken = "__screen__"

type connRole int

const (
	roleUnknown connRole = iota
	rolePlayer
	roleScreen
)

// Messages coming from clients
type ClientMessage struct {
	Type        string     `json:"type"`                  // "join", "answer", "next_question", "close_round", "reset_game", "set_questions"
	Token       string     `json:"token,omitempty"`       // join
	QuestionID  string     `json:"questionId,omitempty"`  // answer
	ChoiceIndex int        `json:"choiceIndex"`           // answer
	Questions   []Question `json:"questions,omitempty"`   // set_questions
}

// JoinedMessage assigns or confirms an identity. Clients persist the token
// so a reconnect resumes the same name.
type JoinedMessage struct {
	Type  string `json:"type"` // "joined"
	Token string `json:"token"`
	Name  string `json:"name"`
}

// StateMessage is the full authoritative snapshot of the current round,
// phase-filtered: answer_index and explanation are null until reveal.
type StateMessage struct {
	Type           string   `json:"type"` // "state"
	QuestionID     string   `json:"questionId"`
	Question       string   `json:"question"`
	Choices        []string `json:"choices"`
	AnswerIndex    *int     `json:"answer_index"`
	Explanation    *string  `json:"explanation"`
	WinnerToken    string   `json:"winnerToken,omitempty"`
	WinnerName     string   `json:"winnerName,omitempty"`
	TotalAnswers   int      `json:"totalAnswers"`
	CorrectAnswers int      `json:"correctAnswers"`
	TotalPlayers   int      `json:"totalPlayers"`
	Phase          string   `json:"phase"`
}

// AnswerCountMessage is the lightweight tally delta sent after every vote and
// on player count changes, so the full snapshot isn't rebuilt per answer.
type AnswerCountMessage struct {
	Type           string           `json:"type"` // "answer_count"
	TotalAnswers   int              `json:"totalAnswers"`
	CorrectAnswers int              `json:"correctAnswers"`
	TotalPlayers   int              `json:"totalPlayers"`
	ChoiceCounts   [choiceCount]int `json:"choiceCounts"`
}

// WinnerMessage announces the first-correct responder at reveal.
type WinnerMessage struct {
	Type  string `json:"type"` // "winner"
	Token string `json:"token"`
	Name  string `json:"name"`
}

// QuestionsSetMessage acknowledges a bulk upload.
type QuestionsSetMessage struct {
	Type  string `json:"type"` // "questions_set"
	Count int    `json:"count"`
}

// SimpleMessage is for generic notifications ("no_more_questions", "error").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type Client struct {
	conn *websocket.Conn
	send chan any

	// role and token are written only by the hub's run goroutine.
	role  connRole
	token string
}

// playerIdentity is what the process remembers about a token, for its whole
// lifetime. The round only ever references tokens, never this record.
type playerIdentity struct {
	name        string
	connectedAt time.Time
}

type joinRequest struct {
	client *Client
	msg    ClientMessage
}

type answerRequest struct {
	client *Client
	msg    ClientMessage
}

type controlRequest struct {
	client *Client
	msg    ClientMessage
}

// openResult carries a fetched question (or the source's refusal) back onto
// the hub loop. Fetching runs off-loop so a slow source can never block
// answer admission for the round in play.
type openResult struct {
	client   *Client
	question Question
	err      error
}

// Hub owns every piece of process-wide mutable game state: the live
// connections, the token->identity map, the name pool, the question queue,
// and the current round. All of it is mutated exclusively by run(), one
// event at a time, which stands in for the single-threaded event loop the
// winner arbitration depends on. No locks guard these fields and none are
// needed.
type Hub struct {
	cfg    *Config
	policy revealStrategy

	clients map[*Client]bool
	players map[string]playerIdentity
	names   *nameAllocator
	source  *questionQueue
	round   *Round

	register   chan *Client
	unregister chan *Client
	joins      chan joinRequest
	answers    chan answerRequest
	controls   chan controlRequest
	opens      chan openResult
	recounts   chan struct{}
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:        cfg,
		policy:     strategyFor(revealPolicy(cfg.revealPolicy)),
		clients:    make(map[*Client]bool),
		players:    make(map[string]playerIdentity),
		names:      newNameAllocator(animalNames),
		source:     newQuestionQueue(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		joins:      make(chan joinRequest),
		answers:    make(chan answerRequest),
		controls:   make(chan controlRequest),
		opens:      make(chan openResult),
		recounts:   make(chan struct{}, 1),
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.handleRegister(c)

		case c := <-h.unregister:
			h.handleUnregister(c)

		case jr := <-h.joins:
			h.handleJoin(jr)

		case ar := <-h.answers:
			h.handleAnswer(ar)

		case cr := <-h.controls:
			h.handleControl(ctx, cr)

		case op := <-h.opens:
			h.handleOpen(op)

		case <-h.recounts:
			h.broadcastAnswerCount()
		}
	}
}

func (h *Hub) handleRegister(c *Client) {
	h.clients[c] = true
}

func (h *Hub) handleUnregister(c *Client) {
	wasPlayer := c.role == rolePlayer

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	// Debounced so a burst of drops (wifi hiccup, page reload wave) becomes
	// one recount instead of a thundering herd of broadcasts.
	if wasPlayer {
		time.AfterFunc(h.cfg.recountDelay, func() {
			select {
			case h.recounts <- struct{}{}:
			default:
			}
		})
	}
}

// handleJoin registers or resumes an identity. A screen join restarts the
// event: the current round is dropped and everyone returns to waiting. A
// player join with a recognized token keeps the name already bound to it;
// anything else mints a fresh token and pulls a name from the pool.
func (h *Hub) handleJoin(jr joinRequest) {
	c := jr.client

	if jr.msg.Token == screenToken {
		c.role = roleScreen
		c.token = screenToken
		h.round = nil

		h.sendOrEvict(c, JoinedMessage{
			Type:  "joined",
			Token: screenToken,
			Name:  "Screen",
		})
		h.broadcastState()
		logf(h.cfg, "QUIZ: Screen connected, round reset")

		return
	}

	token := jr.msg.Token
	identity, known := h.players[token]

	if !known {
		name, err := h.names.allocate()
		if err != nil {
			h.sendOrEvict(c, SimpleMessage{
				Type:    "error",
				Message: "The event is full; no player names are left.",
			})
			return
		}

		token = uuid.NewString()
		identity = playerIdentity{
			name:        name,
			connectedAt: time.Now(),
		}
		h.players[token] = identity
		logf(h.cfg, "QUIZ: Player %q joined (%d names left)", name, h.names.remaining())
	}

	c.role = rolePlayer
	c.token = token

	h.sendOrEvict(c, JoinedMessage{
		Type:  "joined",
		Token: token,
		Name:  identity.name,
	})
	h.sendOrEvict(c, snapshot(h.round, h.playerCount()))
	h.broadcastAnswerCount()
}

// handleAnswer feeds a vote through the round's admission checks. Rejections
// are silent on purpose: late, duplicate, and stale submissions are ordinary
// race noise, not errors the player should see.
func (h *Hub) handleAnswer(ar answerRequest) {
	c := ar.client
	if c.role != rolePlayer || h.round == nil {
		return
	}

	name := h.players[c.token].name

	accepted, wonNow := h.round.submitAnswer(c.token, name, ar.msg.QuestionID, ar.msg.ChoiceIndex)
	if !accepted {
		return
	}

	h.broadcastAnswerCount()

	if wonNow {
		logf(h.cfg, "QUIZ: Fastest correct answer from %q", name)
	}

	if h.policy.onAnswerAccepted(h.round, h.playerCount()) {
		h.reveal()
	}
}

// handleControl processes screen-role commands: next_question, close_round,
// reset_game, set_questions.
func (h *Hub) handleControl(ctx context.Context, cr controlRequest) {
	c := cr.client
	if c.role != roleScreen {
		return
	}

	switch cr.msg.Type {
	case "next_question":
		// Fetch off-loop; the result re-enters through h.opens.
		go func() {
			q, err := h.source.Next(ctx)
			select {
			case h.opens <- openResult{client: c, question: q, err: err}:
			case <-ctx.Done():
			}
		}()

	case "close_round":
		if h.round != nil && h.round.phase == phaseActive && h.policy.onCloseRequested(h.round) {
			h.reveal()
		}

	case "reset_game":
		h.round = nil
		h.source.Reset()
		h.broadcastState()
		logf(h.cfg, "QUIZ: Game reset")

	case "set_questions":
		batch := make([]Question, 0, len(cr.msg.Questions))
		for _, q := range cr.msg.Questions {
			if len(q.Choices) != choiceCount || q.AnswerIndex < 0 || q.AnswerIndex >= choiceCount {
				continue
			}
			batch = append(batch, q)
		}

		count := h.source.SetBatch(batch)
		h.sendOrEvict(c, QuestionsSetMessage{
			Type:  "questions_set",
			Count: count,
		})
		logf(h.cfg, "QUIZ: Loaded %d questions (%d discarded)", count, len(cr.msg.Questions)-count)
	}
}

// handleOpen replaces the current round with a fresh one for the fetched
// question. Answers still in flight for the old round fail the question ID
// check and drop out naturally.
func (h *Hub) handleOpen(op openResult) {
	if op.err != nil {
		h.sendOrEvict(op.client, SimpleMessage{Type: "no_more_questions"})
		logf(h.cfg, "QUIZ: Question source empty: %v", op.err)
		return
	}

	h.round = newRound(op.question)
	h.broadcastState()
	logf(h.cfg, "QUIZ: Round %s opened (%d questions left)", h.round.questionID[:8], h.source.Remaining())
}

// reveal closes the round and announces the winner, if there is one. Safe to
// reach from either policy; a second call is a no-op.
func (h *Hub) reveal() {
	if h.round == nil || h.round.phase != phaseActive {
		return
	}

	h.round.close()

	if h.round.winnerToken != "" {
		h.broadcast(WinnerMessage{
			Type:  "winner",
			Token: h.round.winnerToken,
			Name:  h.round.winnerName,
		})
	}
	h.broadcastState()

	logf(h.cfg, "QUIZ: Round closed, winner: %q", h.round.winnerName)
}

// playerCount recomputes the live player-connection count by scanning, so a
// missed decrement can never make the denominator drift.
func (h *Hub) playerCount() int {
	count := 0
	for c := range h.clients {
		if c.role == rolePlayer {
			count++
		}
	}
	return count
}

// sendOrEvict delivers to one client without ever blocking the hub loop.
// A client whose buffer is full is dropped on the spot; its readPump will
// notice the closed connection and unregister it.
func (h *Hub) sendOrEvict(c *Client, msg any) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcast(msg any) {
	for c := range h.clients {
		h.sendOrEvict(c, msg)
	}
}

func (h *Hub) broadcastState() {
	h.broadcast(snapshot(h.round, h.playerCount()))
}

func (h *Hub) broadcastAnswerCount() {
	msg := AnswerCountMessage{
		Type:         "answer_count",
		TotalPlayers: h.playerCount(),
	}
	if h.round != nil {
		msg.TotalAnswers = h.round.totalAnswers
		msg.CorrectAnswers = h.round.correctAnswers
		msg.ChoiceCounts = h.round.choiceCounts()
	}

	h.broadcast(msg)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveQuizSocket upgrades the connection and hands it to the hub.
func serveQuizSocket(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SOCKET: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := &Client{
			conn: conn,
			// Tally deltas arrive in bursts of one per vote, so the buffer is
			// sized for a roomful of answers landing at once.
			send: make(chan any, 32),
		}

		h.register <- client

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			h.joins <- joinRequest{
				client: c,
				msg:    msg,
			}
		case "answer":
			h.answers <- answerRequest{
				client: c,
				msg:    msg,
			}
		case "next_question", "close_round", "reset_game", "set_questions":
			h.controls <- controlRequest{
				client: c,
				msg:    msg,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}
