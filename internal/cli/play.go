package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"trivia-arena/internal/config"
	"trivia-arena/internal/domain"
	"trivia-arena/internal/engine"
	"trivia-arena/internal/transport/wsclient"
)

type playOptions struct {
	server     string
	room       string
	host       bool
	id         string
	name       string
	avatar     string
	topic      string
	difficulty string
	mode       string
	rounds     int
	bots       int
}

// NewPlayCmd runs a game in the terminal, solo or against a room server.
func NewPlayCmd(configPath *string) *cobra.Command {
	opts := playOptions{}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Play trivia in the terminal",
		Example: `  trivia-arena play --topic "World History" --mode survival
  trivia-arena play --server ws://localhost:8080/ws --host --name alice
  trivia-arena play --server ws://localhost:8080/ws --room K7QX2 --name bob`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("bots") {
				opts.bots = -1
			}
			return runPlay(cmd.Context(), *configPath, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "", "room server websocket url; empty plays offline")
	f.StringVar(&opts.room, "room", "", "room code to join")
	f.BoolVar(&opts.host, "host", false, "create a room on the server")
	f.StringVar(&opts.id, "id", "", "stable player id, reused to reconnect (random if empty)")
	f.StringVar(&opts.name, "name", "player", "display name")
	f.StringVar(&opts.avatar, "avatar", "", "avatar reference")
	f.StringVar(&opts.topic, "topic", "", "question topic")
	f.StringVar(&opts.difficulty, "difficulty", "", "rookie, pro, all-star or hall-of-fame")
	f.StringVar(&opts.mode, "mode", "", "classic, survival or time-attack")
	f.IntVar(&opts.rounds, "rounds", 0, "questions in a classic game")
	f.IntVar(&opts.bots, "bots", 0, "simulated opponents in an offline game (defaults to config)")
	return cmd
}

func runPlay(ctx context.Context, configPath string, opts playOptions, in io.Reader, out io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	game, err := opts.gameConfig()
	if err != nil {
		return err
	}
	me := domain.Participant{
		StableID:    opts.id,
		DisplayName: strings.TrimSpace(opts.name),
		AvatarRef:   opts.avatar,
	}
	if me.StableID == "" {
		me.StableID = uuid.NewString()
	}
	if me.DisplayName == "" {
		return domain.ErrInvalidParticipant
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	p := &player{
		cfg:     cfg,
		deps:    b,
		logger:  logger,
		me:      me,
		out:     out,
		console: newConsole(out),
		input:   readLines(ctx, in),
	}
	if opts.server == "" {
		bots := opts.bots
		if bots < 0 {
			bots = cfg.Game.Bots
		}
		return p.solo(ctx, game, bots)
	}
	return p.remote(ctx, opts, game)
}

func (o playOptions) gameConfig() (domain.GameConfig, error) {
	game := domain.GameConfig{Topic: o.topic, Rounds: o.rounds}
	if o.difficulty != "" {
		d, ok := domain.ParseDifficulty(o.difficulty)
		if !ok {
			return game, fmt.Errorf("unknown difficulty %q", o.difficulty)
		}
		game.Difficulty = d
	}
	if o.mode != "" {
		m, ok := domain.ParseMode(o.mode)
		if !ok {
			return game, fmt.Errorf("unknown mode %q", o.mode)
		}
		game.Mode = m
	}
	return game.Normalize(), nil
}

// player holds what a terminal session needs across the lobby and the game.
type player struct {
	cfg     config.Config
	deps    *backends
	logger  *zap.Logger
	me      domain.Participant
	out     io.Writer
	console *console
	input   <-chan string
}

func (p *player) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithGenerator(generator(p.cfg)),
		engine.WithBackup(p.deps.backupSource()),
		engine.WithResults(p.deps.resultSink()),
		engine.WithLogger(p.logger.Named("engine")),
		engine.WithTiming(timing(p.cfg)),
	}
}

func (p *player) solo(ctx context.Context, game domain.GameConfig, bots int) error {
	fmt.Fprintf(p.out, "%s trivia on %q. Answer with 1-%d.\n", game.Mode, game.Topic, domain.OptionCount)
	eng := engine.New(ctx, engine.Config{
		Game:        game,
		LocalPlayer: p.me,
		BotCount:    bots,
	}, p.engineOptions()...)
	return p.drive(ctx, eng, nil, "")
}

func (p *player) remote(ctx context.Context, opts playOptions, game domain.GameConfig) error {
	client, err := wsclient.Dial(ctx, opts.server, p.logger.Named("ws"))
	if err != nil {
		return err
	}
	defer client.Close()

	roomID := strings.ToUpper(strings.TrimSpace(opts.room))
	switch {
	case opts.host:
		err = client.Emit(domain.EventCreateRoom, domain.CreateRoomPayload{Participant: p.me, Config: game})
	case roomID != "":
		err = client.Emit(domain.EventJoinRoom, domain.JoinRoomPayload{RoomID: roomID, Participant: p.me})
	default:
		return errors.New("either --host or --room is required with --server")
	}
	if err != nil {
		return err
	}

	started, err := p.lobby(ctx, client, opts.host, roomID, game)
	if err != nil || started == nil {
		return err
	}
	eng := engine.New(ctx, engine.Config{
		Game:        started.Config,
		RoomID:      started.RoomID,
		LocalPlayer: p.me,
		Roster:      started.Players,
		Questions:   started.Questions,
		StartIndex:  answeredBy(started.Players, p.me.StableID),
	}, append(p.engineOptions(), engine.WithReporter(client))...)
	return p.drive(ctx, eng, client.Events(), started.RoomID)
}

// answeredBy returns how many answers the seat has already reported, so a
// rejoining client picks up where it left off.
func answeredBy(roster []domain.Participant, stableID string) int {
	for _, p := range roster {
		if p.StableID == stableID {
			return p.QuestionsAnswered
		}
	}
	return 0
}

// lobby waits for the game to start. A host starts it on Enter.
func (p *player) lobby(ctx context.Context, client *wsclient.Client, host bool, roomID string, game domain.GameConfig) (*domain.GameStartedPayload, error) {
	events := client.Events()
	for {
		select {
		case <-ctx.Done():
			return nil, nil
		case env, ok := <-events:
			if !ok {
				return nil, domain.ErrTransportUnavailable
			}
			switch env.Type {
			case domain.EventRoomCreated:
				var created domain.RoomCreatedPayload
				if err := json.Unmarshal(env.Payload, &created); err != nil {
					return nil, err
				}
				roomID = created.RoomID
				fmt.Fprintf(p.out, "Room code: %s. Press Enter to start once everyone has joined.\n", roomID)
			case domain.EventUpdatePlayers:
				var roster []domain.Participant
				if err := json.Unmarshal(env.Payload, &roster); err == nil {
					p.console.roster(roster)
				}
			case domain.EventRoomConfigUpdated:
				if err := json.Unmarshal(env.Payload, &game); err == nil {
					fmt.Fprintf(p.out, "Settings: %s, %s, %d rounds, %q\n", game.Mode, game.Difficulty, game.Rounds, game.Topic)
				}
			case domain.EventGameStarted:
				var started domain.GameStartedPayload
				if err := json.Unmarshal(env.Payload, &started); err != nil {
					return nil, err
				}
				return &started, nil
			case domain.EventError:
				var msg domain.ErrorPayload
				_ = json.Unmarshal(env.Payload, &msg)
				if roomID == "" || !host {
					return nil, fmt.Errorf("server: %s", msg.Message)
				}
				fmt.Fprintf(p.out, "Server: %s\n", msg.Message)
			}
		case _, ok := <-p.input:
			if !ok {
				p.input = nil
				continue
			}
			if !host || roomID == "" {
				continue
			}
			fmt.Fprintln(p.out, "Preparing questions...")
			questions := engine.OpeningBatch(ctx, game, generator(p.cfg), p.deps.backupSource(), p.logger.Named("content"))
			if err := client.Emit(domain.EventStartGame, domain.StartGamePayload{RoomID: roomID, Questions: questions}); err != nil {
				return nil, err
			}
		}
	}
}

// drive renders the engine until the game ends, feeding it answers from the
// terminal and roster updates from the room when connected.
func (p *player) drive(ctx context.Context, eng *engine.Engine, events <-chan domain.Envelope, roomID string) error {
	views, cancel := eng.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-eng.Done():
			return nil
		case v, ok := <-views:
			if !ok {
				return nil
			}
			p.console.render(v)
			if v.Phase == domain.PhaseGameOver {
				eng.Flush()
				return nil
			}
		case env, ok := <-events:
			if !ok {
				events = nil
				fmt.Fprintf(p.out, "Lost connection to room %s; playing on offline.\n", roomID)
				continue
			}
			p.roomEvent(ctx, eng, env)
		case line, ok := <-p.input:
			if !ok {
				p.input = nil
				continue
			}
			choice, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil || choice < 1 || choice > domain.OptionCount {
				fmt.Fprintf(p.out, "Answer with 1-%d.\n", domain.OptionCount)
				continue
			}
			switch err := eng.Answer(ctx, choice-1); {
			case errors.Is(err, engine.ErrAnswerNotAccepted):
				fmt.Fprintln(p.out, "Not accepting answers right now.")
			case errors.Is(err, engine.ErrEngineStopped):
				return nil
			case err != nil:
				return err
			default:
				fmt.Fprintln(p.out, "Answer locked in.")
			}
		}
	}
}

func (p *player) roomEvent(ctx context.Context, eng *engine.Engine, env domain.Envelope) {
	switch env.Type {
	case domain.EventUpdatePlayers:
		var roster []domain.Participant
		if err := json.Unmarshal(env.Payload, &roster); err != nil {
			p.logger.Warn("bad roster update", zap.Error(err))
			return
		}
		if err := eng.ApplyRoster(ctx, roster); err != nil {
			p.logger.Debug("roster not applied", zap.Error(err))
		}
	case domain.EventError:
		var msg domain.ErrorPayload
		_ = json.Unmarshal(env.Payload, &msg)
		fmt.Fprintf(p.out, "Server: %s\n", msg.Message)
	}
}

func readLines(ctx context.Context, in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
