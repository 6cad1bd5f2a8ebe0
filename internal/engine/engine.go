package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"trivia-arena/internal/domain"
)

var (
	// ErrAnswerNotAccepted is returned when answering is locked for the current question.
	ErrAnswerNotAccepted = errors.New("answer not accepted")
	// ErrEngineStopped is returned once the engine loop has exited.
	ErrEngineStopped = errors.New("engine stopped")
)

const resultTimeout = 5 * time.Second

// Reporter relays the local participant's score delta to the room. It must not block.
type Reporter interface {
	SubmitAnswer(roomID string, pointsDelta int)
}

// ResultSink persists the summary of a finished local game.
type ResultSink interface {
	RecordSessionResult(ctx context.Context, result domain.SessionResult) error
}

// Timing holds the pacing of a game.
type Timing struct {
	QuestionTime       time.Duration
	TimeAttackDuration time.Duration
	ClassicReveal      time.Duration
	BriskReveal        time.Duration
}

func DefaultTiming() Timing {
	return Timing{
		QuestionTime:       15 * time.Second,
		TimeAttackDuration: 60 * time.Second,
		ClassicReveal:      5 * time.Second,
		BriskReveal:        1500 * time.Millisecond,
	}
}

func (t Timing) withDefaults() Timing {
	def := DefaultTiming()
	if t.QuestionTime <= 0 {
		t.QuestionTime = def.QuestionTime
	}
	if t.TimeAttackDuration <= 0 {
		t.TimeAttackDuration = def.TimeAttackDuration
	}
	if t.ClassicReveal <= 0 {
		t.ClassicReveal = def.ClassicReveal
	}
	if t.BriskReveal <= 0 {
		t.BriskReveal = def.BriskReveal
	}
	return t
}

// Config describes one local game.
type Config struct {
	Game domain.GameConfig
	// RoomID routes answer reports; empty for offline play.
	RoomID      string
	LocalPlayer domain.Participant
	// Roster is the room's roster as received from the registry. Any roster,
	// even a single seat, suppresses simulated opponents.
	Roster    []domain.Participant
	Questions []domain.Question
	// StartIndex is the first question played. A client rejoining a running
	// game sets it to the number of answers its seat already reported.
	StartIndex int
	// BotCount is the number of simulated opponents seated in a solo game.
	BotCount int
}

// View is a read-only copy of the engine state handed to renderers.
type View struct {
	Phase    domain.Phase
	Config   domain.GameConfig
	LocalID  string
	Index    int
	Question *domain.Question
	// Outcome is the local participant's outcome for the current question, once answered or revealed.
	Outcome       *domain.RoundOutcome
	Players       []domain.Participant
	Waiting       bool
	TimeLeft      time.Duration
	QuestionsSeen int
	CorrectCount  int
}

// Option customizes an Engine.
type Option func(*Engine)

func WithClock(clock clockwork.Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

func WithGenerator(gen Generator) Option {
	return func(e *Engine) { e.gen = gen }
}

func WithBackup(backup BackupSource) Option {
	return func(e *Engine) { e.backup = backup }
}

func WithResults(sink ResultSink) Option {
	return func(e *Engine) { e.results = sink }
}

func WithReporter(reporter Reporter) Option {
	return func(e *Engine) { e.reporter = reporter }
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithTiming(t Timing) Option {
	return func(e *Engine) { e.timing = t }
}

type engineMsg interface{ isEngineMsg() }

type answerMsg struct {
	option int
	reply  chan error
}

type timeUpMsg struct{ round int }

type advanceMsg struct{ round int }

type clockExpiredMsg struct{ epoch int }

type contentMsg struct {
	seq       int
	questions []domain.Question
	backup    bool
}

type rosterMsg struct {
	players []domain.Participant
	reply   chan struct{}
}

type snapshotMsg struct {
	reply chan View
}

func (answerMsg) isEngineMsg()       {}
func (timeUpMsg) isEngineMsg()       {}
func (advanceMsg) isEngineMsg()      {}
func (clockExpiredMsg) isEngineMsg() {}
func (contentMsg) isEngineMsg()      {}
func (rosterMsg) isEngineMsg()       {}
func (snapshotMsg) isEngineMsg()     {}

// Engine drives one participant's view of a game. All state below the
// subscriber fields is owned by the loop goroutine.
type Engine struct {
	cfg      Config
	timing   Timing
	clock    clockwork.Clock
	rng      *rand.Rand
	gen      Generator
	backup   BackupSource
	results  ResultSink
	reporter Reporter
	logger   *zap.Logger

	ctx   context.Context
	inbox chan engineMsg
	done  chan struct{}

	subMu    sync.Mutex
	subs     map[chan View]struct{}
	lastView *View
	closed   bool

	phase     domain.Phase
	index     int
	round     int
	questions []domain.Question
	seenIDs   map[string]struct{}
	seenTexts map[string]struct{}
	players   []domain.Participant
	localIdx  int
	solo      bool
	staged    *domain.RoundOutcome
	revealed  *domain.RoundOutcome
	startedAt time.Time
	waiting   bool
	fetching  bool
	fetchSeq  int
	// resumeFrom is the index entered when content arrives before the first question.
	resumeFrom int

	questionTimer clockwork.Timer
	advanceTimer  clockwork.Timer

	globalTimer  clockwork.Timer
	clockStarted bool
	clockRunning bool
	clockEpoch   int
	clockLeft    time.Duration
	clockFrom    time.Time

	stats     sessionStats
	recording sync.WaitGroup
}

type sessionStats struct {
	seen     int
	correct  int
	bestTime time.Duration
}

// New seats the players and starts the engine loop; it stops when ctx is cancelled.
func New(ctx context.Context, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:       cfg,
		timing:    DefaultTiming(),
		clock:     clockwork.NewRealClock(),
		logger:    zap.NewNop(),
		ctx:       ctx,
		inbox:     make(chan engineMsg, 16),
		done:      make(chan struct{}),
		subs:      make(map[chan View]struct{}),
		phase:     domain.PhaseLobby,
		seenIDs:   make(map[string]struct{}),
		seenTexts: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.cfg.Game = cfg.Game.Normalize()
	e.timing = e.timing.withDefaults()
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(e.clock.Now().UnixNano()))
	}
	go e.run()
	return e
}

// Done is closed once the loop has exited.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Flush waits until the result of a finished game has been handed to the
// result sink. It returns at once when no game has finished.
func (e *Engine) Flush() { e.recording.Wait() }

// Answer locks in the local participant's choice for the current question.
func (e *Engine) Answer(ctx context.Context, option int) error {
	reply := make(chan error, 1)
	if err := e.send(ctx, answerMsg{option: option, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ApplyRoster takes remote participants' scores as broadcast by the registry.
func (e *Engine) ApplyRoster(ctx context.Context, players []domain.Participant) error {
	reply := make(chan struct{}, 1)
	if err := e.send(ctx, rosterMsg{players: players, reply: reply}); err != nil {
		return err
	}
	select {
	case <-reply:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current state.
func (e *Engine) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := e.send(ctx, snapshotMsg{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-e.done:
		return View{}, ErrEngineStopped
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// Subscribe returns a channel of state changes. Slow readers lose the oldest
// pending view. The caller must invoke the returned cancel function.
func (e *Engine) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 8)

	e.subMu.Lock()
	if e.closed {
		e.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	e.subs[ch] = struct{}{}
	if e.lastView != nil {
		ch <- *e.lastView
	}
	e.subMu.Unlock()

	cancel := func() {
		e.subMu.Lock()
		if _, ok := e.subs[ch]; ok {
			delete(e.subs, ch)
			close(ch)
		}
		e.subMu.Unlock()
	}
	return ch, cancel
}

func (e *Engine) send(ctx context.Context, msg engineMsg) error {
	select {
	case e.inbox <- msg:
		return nil
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post is used by timers and fetches, which have no caller context.
func (e *Engine) post(msg engineMsg) {
	select {
	case e.inbox <- msg:
	case <-e.done:
	case <-e.ctx.Done():
	}
}

func (e *Engine) run() {
	defer close(e.done)
	defer e.closeSubscribers()
	defer e.stopTimers()

	e.begin()
	for {
		select {
		case <-e.ctx.Done():
			return
		case m := <-e.inbox:
			switch msg := m.(type) {
			case answerMsg:
				msg.reply <- e.answer(msg.option)
			case timeUpMsg:
				e.timeUp(msg.round)
			case advanceMsg:
				e.advance(msg.round)
			case clockExpiredMsg:
				e.clockExpired(msg.epoch)
			case contentMsg:
				e.contentArrived(msg)
			case rosterMsg:
				e.applyRoster(msg.players)
				msg.reply <- struct{}{}
			case snapshotMsg:
				msg.reply <- e.view()
			}
		}
	}
}

func (e *Engine) begin() {
	local := e.cfg.LocalPlayer
	local.IsBot = false
	e.solo = len(e.cfg.Roster) == 0
	if e.solo {
		e.players = append([]domain.Participant{local}, Lineup(e.cfg.BotCount)...)
		e.localIdx = 0
	} else {
		e.players = append([]domain.Participant(nil), e.cfg.Roster...)
		e.localIdx = -1
		for i, p := range e.players {
			if p.StableID == local.StableID {
				e.localIdx = i
				break
			}
		}
		if e.localIdx < 0 {
			e.players = append(e.players, local)
			e.localIdx = len(e.players) - 1
		}
	}

	e.appendQuestions(e.cfg.Questions, false)
	start := e.cfg.StartIndex
	if start < 0 {
		start = 0
	}
	if start > 0 {
		e.stats.seen = start
		e.stats.correct = e.players[e.localIdx].CorrectAnswersCount
	}
	e.logger.Info("game starting",
		zap.String("mode", string(e.cfg.Game.Mode)),
		zap.String("topic", e.cfg.Game.Topic),
		zap.Int("questions", len(e.questions)),
		zap.Int("players", len(e.players)),
		zap.Bool("solo", e.solo),
		zap.Int("start", start),
	)
	switch {
	case start > 0 && e.cfg.Game.Mode == domain.ModeSurvival && e.players[e.localIdx].CorrectAnswersCount < start:
		// eliminated before the rejoin
		e.gameOver()
	case start < len(e.questions):
		e.enterPlaying(start)
	case start > 0 && !e.cfg.Game.Mode.OpenEnded():
		e.gameOver()
	default:
		count := FetchBatchSize
		if start == 0 && !e.cfg.Game.Mode.OpenEnded() {
			count = e.cfg.Game.Rounds
		}
		e.resumeFrom = len(e.questions)
		e.waiting = true
		e.requestContent(count, false)
		e.publish()
	}
}

func (e *Engine) enterPlaying(i int) {
	stopTimer(&e.advanceTimer)
	e.phase = domain.PhasePlaying
	e.index = i
	e.round++
	e.staged = nil
	e.revealed = nil
	e.startedAt = e.clock.Now()

	round := e.round
	if e.cfg.Game.Mode == domain.ModeTimeAttack {
		if !e.clockStarted {
			e.clockStarted = true
			e.clockLeft = e.timing.TimeAttackDuration
		}
		e.resumeClock()
	} else {
		e.questionTimer = e.clock.AfterFunc(e.timing.QuestionTime, func() { e.post(timeUpMsg{round: round}) })
	}
	e.maybePrefetch()
	e.publish()
}

func (e *Engine) answer(option int) error {
	if e.phase != domain.PhasePlaying || e.waiting || e.staged != nil {
		return ErrAnswerNotAccepted
	}
	q := e.questions[e.index]
	if option < 0 || option >= len(q.Options) {
		return fmt.Errorf("%w: option %d out of range", ErrAnswerNotAccepted, option)
	}

	elapsed := e.clock.Since(e.startedAt)
	local := e.players[e.localIdx]
	choice := option
	var out domain.RoundOutcome
	if e.cfg.Game.Mode == domain.ModeTimeAttack {
		out = ScoreTimeAttack(q, &choice, elapsed, local.Score, local.Streak)
	} else {
		out = ScoreClassic(q, &choice, elapsed, e.cfg.Game.Difficulty, local.Streak)
	}
	e.staged = &out

	if e.cfg.Game.Mode == domain.ModeTimeAttack {
		e.enterRoundResult()
		return nil
	}
	// Classic and Survival reveal on the question timer.
	e.publish()
	return nil
}

func (e *Engine) timeUp(round int) {
	if round != e.round || e.phase != domain.PhasePlaying {
		return
	}
	e.questionTimer = nil
	if e.staged == nil {
		local := e.players[e.localIdx]
		out := ScoreClassic(e.questions[e.index], nil, e.timing.QuestionTime, e.cfg.Game.Difficulty, local.Streak)
		e.staged = &out
	}
	e.enterRoundResult()
}

func (e *Engine) enterRoundResult() {
	stopTimer(&e.questionTimer)
	e.phase = domain.PhaseRoundResult
	out := *e.staged
	e.revealed = &out
	q := e.questions[e.index]

	if e.simulatesBots() {
		e.playBots(q)
	}

	local := &e.players[e.localIdx]
	local.Score += out.PointsAwarded
	local.Streak = out.NewStreak
	if out.IsCorrect {
		local.CorrectAnswersCount++
	}
	e.stats.seen++
	if out.IsCorrect {
		e.stats.correct++
		if e.stats.bestTime == 0 || out.AnswerTime < e.stats.bestTime {
			e.stats.bestTime = out.AnswerTime
		}
	}
	e.report(out.PointsAwarded)

	if e.cfg.Game.Mode == domain.ModeSurvival && !out.IsCorrect {
		e.gameOver()
		return
	}

	delay := e.timing.BriskReveal
	if e.cfg.Game.Mode == domain.ModeClassic {
		delay = e.timing.ClassicReveal
	}
	round := e.round
	e.advanceTimer = e.clock.AfterFunc(delay, func() { e.post(advanceMsg{round: round}) })

	if e.cfg.Game.Mode.OpenEnded() && e.index+1 >= len(e.questions) {
		e.awaitContent()
	}
	e.publish()
}

func (e *Engine) advance(round int) {
	if round != e.round || e.phase != domain.PhaseRoundResult {
		return
	}
	e.advanceTimer = nil
	if e.waiting {
		return
	}
	next := e.index + 1
	switch {
	case next < len(e.questions):
		e.enterPlaying(next)
	case e.cfg.Game.Mode.OpenEnded():
		e.awaitContent()
		e.publish()
	default:
		e.gameOver()
	}
}

// awaitContent blocks progress until more questions arrive.
func (e *Engine) awaitContent() {
	e.waiting = true
	e.pauseClock()
	e.requestContent(FetchBatchSize, false)
}

func (e *Engine) resume() {
	e.waiting = false
	stopTimer(&e.advanceTimer)
	if e.phase == domain.PhaseLobby {
		e.enterPlaying(e.resumeFrom)
		return
	}
	e.enterPlaying(e.index + 1)
}

func (e *Engine) resumeClock() {
	if e.clockRunning {
		return
	}
	e.clockRunning = true
	e.clockFrom = e.clock.Now()
	e.clockEpoch++
	epoch := e.clockEpoch
	e.globalTimer = e.clock.AfterFunc(e.clockLeft, func() { e.post(clockExpiredMsg{epoch: epoch}) })
}

func (e *Engine) pauseClock() {
	if !e.clockRunning {
		return
	}
	e.clockRunning = false
	e.clockLeft -= e.clock.Since(e.clockFrom)
	if e.clockLeft < 0 {
		e.clockLeft = 0
	}
	e.clockEpoch++
	stopTimer(&e.globalTimer)
}

func (e *Engine) timeLeft() time.Duration {
	if !e.clockRunning {
		return e.clockLeft
	}
	left := e.clockLeft - e.clock.Since(e.clockFrom)
	if left < 0 {
		return 0
	}
	return left
}

func (e *Engine) clockExpired(epoch int) {
	if epoch != e.clockEpoch || !e.clockRunning || e.phase == domain.PhaseGameOver {
		return
	}
	e.globalTimer = nil
	e.gameOver()
}

func (e *Engine) simulatesBots() bool {
	return e.solo && e.cfg.Game.Mode != domain.ModeSurvival
}

func (e *Engine) playBots(q domain.Question) {
	roundsLeft := -1
	if !e.cfg.Game.Mode.OpenEnded() {
		roundsLeft = len(e.questions) - e.index - 1
	}
	difficulty := q.DifficultyTag
	if difficulty == "" {
		difficulty = e.cfg.Game.Difficulty
	}
	humanScore := e.players[e.localIdx].Score
	for i := range e.players {
		bot := &e.players[i]
		if !bot.IsBot {
			continue
		}
		persona, ok := personaByID(bot.StableID)
		if !ok {
			continue
		}
		out := simulateBot(persona, *bot, q, BotSituation{
			Category:           q.Category,
			QuestionDifficulty: difficulty,
			BotScore:           bot.Score,
			HumanScore:         humanScore,
			RoundsLeft:         roundsLeft,
			Mode:               e.cfg.Game.Mode,
		}, e.cfg.Game, e.rng)
		bot.Score += out.PointsAwarded
		bot.Streak = out.NewStreak
		if out.IsCorrect {
			bot.CorrectAnswersCount++
		}
	}
}

func (e *Engine) report(delta int) {
	if e.reporter == nil || e.cfg.RoomID == "" {
		return
	}
	e.reporter.SubmitAnswer(e.cfg.RoomID, delta)
}

func (e *Engine) applyRoster(players []domain.Participant) {
	localID := e.players[e.localIdx].StableID
	for _, p := range players {
		if p.StableID == localID {
			continue
		}
		p.IsBot = false
		found := false
		for i := range e.players {
			if e.players[i].StableID == p.StableID {
				e.players[i] = p
				found = true
				break
			}
		}
		if !found {
			e.players = append(e.players, p)
		}
	}
	e.publish()
}

func (e *Engine) gameOver() {
	e.pauseClock()
	e.stopTimers()
	e.phase = domain.PhaseGameOver
	e.waiting = false

	local := e.players[e.localIdx]
	result := domain.SessionResult{
		StableID:       local.StableID,
		Score:          local.Score,
		CorrectCount:   e.stats.correct,
		QuestionsSeen:  e.stats.seen,
		BestAnswerTime: e.stats.bestTime,
		Topic:          e.cfg.Game.Topic,
		Mode:           e.cfg.Game.Mode,
		FinishedAt:     e.clock.Now(),
	}
	e.logger.Info("game over",
		zap.String("player", result.StableID),
		zap.Int("score", result.Score),
		zap.Int("correct", result.CorrectCount),
		zap.Int("seen", result.QuestionsSeen),
	)
	if e.results != nil {
		e.recording.Add(1)
		go func() {
			defer e.recording.Done()
			ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), resultTimeout)
			defer cancel()
			if err := e.results.RecordSessionResult(ctx, result); err != nil {
				e.logger.Warn("record session result", zap.Error(err))
			}
		}()
	}
	e.publish()
}

func (e *Engine) stopTimers() {
	stopTimer(&e.questionTimer)
	stopTimer(&e.advanceTimer)
	stopTimer(&e.globalTimer)
}

func stopTimer(t *clockwork.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (e *Engine) view() View {
	v := View{
		Phase:         e.phase,
		Config:        e.cfg.Game,
		LocalID:       e.players[e.localIdx].StableID,
		Index:         e.index,
		Players:       append([]domain.Participant(nil), e.players...),
		Waiting:       e.waiting,
		TimeLeft:      e.timeLeft(),
		QuestionsSeen: e.stats.seen,
		CorrectCount:  e.stats.correct,
	}
	if e.phase != domain.PhaseLobby && e.index < len(e.questions) {
		q := e.questions[e.index]
		v.Question = &q
	}
	switch {
	case e.revealed != nil:
		out := *e.revealed
		v.Outcome = &out
	case e.staged != nil:
		out := *e.staged
		v.Outcome = &out
	}
	return v
}

func (e *Engine) publish() {
	v := e.view()
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.lastView = &v
	for ch := range e.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- v
		}
	}
}

func (e *Engine) closeSubscribers() {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.closed = true
	for ch := range e.subs {
		delete(e.subs, ch)
		close(ch)
	}
}
