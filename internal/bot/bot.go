// Package bot turns chat messages into replies: commands, company selection
// and essay reviews with paginated results.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/evaluator"
	"github.com/spigell/es-reviewer/internal/ledger"
	"github.com/spigell/es-reviewer/internal/logger"
	"github.com/spigell/es-reviewer/internal/paginate"
	"github.com/spigell/es-reviewer/internal/session"
)

const (
	DefaultMinChars = 80
	DefaultMaxChars = 2000
)

// Reviewer runs one essay evaluation.
type Reviewer interface {
	Evaluate(ctx context.Context, in evaluator.Input) *evaluator.Outcome
}

// Recorder stores evaluations. It is optional.
type Recorder interface {
	Upsert(e ledger.Entry) error
}

// Config holds the message limits.
type Config struct {
	MinChars    int
	MaxChars    int
	ChunkLength int
	MaxChunks   int
}

// Deps aggregates dependencies shared across all routes.
type Deps struct {
	Reviewer Reviewer
	Store    session.Store
	Catalog  *companies.Catalog
	Recorder Recorder
	Logger   *zap.Logger
}

// Message is one incoming chat text.
type Message struct {
	User string
	Text string
}

// Route handles one kind of message.
type Route interface {
	Name() string
	Match(msg Message) bool
	Handle(ctx context.Context, b *Bot, msg Message) ([]string, error)
}

// Bot dispatches messages to the first matching route.
type Bot struct {
	deps   Deps
	cfg    Config
	routes []Route
	now    func() time.Time
}

func New(deps Deps, cfg Config) (*Bot, error) {
	if deps.Reviewer == nil {
		return nil, fmt.Errorf("bot requires a reviewer")
	}
	if deps.Store == nil {
		return nil, fmt.Errorf("bot requires a session store")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("bot requires a company catalog")
	}
	deps.Logger = logger.OrNop(deps.Logger)

	if cfg.MinChars <= 0 {
		cfg.MinChars = DefaultMinChars
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}
	if cfg.ChunkLength <= 0 {
		cfg.ChunkLength = paginate.DefaultMaxLen
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = paginate.DefaultMaxChunks
	}

	return &Bot{deps: deps, cfg: cfg, routes: DefaultRoutes(), now: time.Now}, nil
}

// DefaultRoutes returns the routes in matching order. The essay route
// matches everything and must stay last.
func DefaultRoutes() []Route {
	return []Route{
		helpRoute{},
		resetRoute{},
		continueRoute{},
		catalogRoute{},
		companyRoute{},
		essayRoute{},
	}
}

// Handle returns the reply texts for msg.
func (b *Bot) Handle(ctx context.Context, msg Message) ([]string, error) {
	log := b.deps.Logger.With(zap.String(logger.FieldUser, msg.User))
	for _, r := range b.routes {
		if !r.Match(msg) {
			continue
		}
		log.Debug("route message", zap.String("route", r.Name()), zap.Int("length", paginate.Length(msg.Text)))
		replies, err := r.Handle(ctx, b, msg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", r.Name(), err)
		}
		return replies, nil
	}
	return nil, nil
}

// Follow greets a user who added the bot.
func (b *Bot) Follow(context.Context, string) []string {
	return []string{HelpText}
}

// paginate splits text, stores the rest and returns the chunks to send.
func (b *Bot) paginate(ctx context.Context, user, text string) []string {
	res := paginate.Split(text, b.cfg.ChunkLength, b.cfg.MaxChunks)
	if err := b.deps.Store.SetContinuation(ctx, user, res.Rest); err != nil {
		b.deps.Logger.Warn("save continuation", zap.String(logger.FieldUser, user), zap.Error(err))
	}
	return res.Chunks
}

type helpRoute struct{}

func (helpRoute) Name() string { return "help" }

func (helpRoute) Match(msg Message) bool {
	return helpCommand.MatchString(strings.TrimSpace(msg.Text))
}

func (helpRoute) Handle(context.Context, *Bot, Message) ([]string, error) {
	return []string{HelpText}, nil
}

type resetRoute struct{}

func (resetRoute) Name() string { return "reset" }

func (resetRoute) Match(msg Message) bool {
	return resetCommand.MatchString(strings.TrimSpace(msg.Text))
}

func (resetRoute) Handle(ctx context.Context, b *Bot, msg Message) ([]string, error) {
	if err := b.deps.Store.ClearContinuation(ctx, msg.User); err != nil {
		return nil, err
	}
	if err := b.deps.Store.ClearCompany(ctx, msg.User); err != nil {
		return nil, err
	}
	return []string{resetReply}, nil
}

type continueRoute struct{}

func (continueRoute) Name() string { return "continue" }

func (continueRoute) Match(msg Message) bool {
	return continuationCommand.MatchString(strings.TrimSpace(msg.Text))
}

func (continueRoute) Handle(ctx context.Context, b *Bot, msg Message) ([]string, error) {
	rest, err := b.deps.Store.Continuation(ctx, msg.User)
	if err != nil {
		return nil, err
	}
	if rest == "" {
		return []string{noContinuationReply}, nil
	}
	return b.paginate(ctx, msg.User, rest), nil
}

type catalogRoute struct{}

func (catalogRoute) Name() string { return "catalog" }

func (catalogRoute) Match(msg Message) bool {
	return catalogCommand.MatchString(strings.TrimSpace(msg.Text))
}

func (catalogRoute) Handle(_ context.Context, b *Bot, _ Message) ([]string, error) {
	return []string{catalogText(b.deps.Catalog.Profiles())}, nil
}

type companyRoute struct{}

func (companyRoute) Name() string { return "company" }

func (companyRoute) Match(msg Message) bool {
	_, ok := companyOnly(msg.Text)
	return ok
}

func (companyRoute) Handle(ctx context.Context, b *Bot, msg Message) ([]string, error) {
	name, _ := companyOnly(msg.Text)
	safe := SanitizeCompany(name)
	if safe == "" {
		return []string{badCompanyReply}, nil
	}
	if err := b.deps.Store.SetCompany(ctx, msg.User, safe); err != nil {
		return nil, err
	}

	addon := "企業アドオン: なし（ベース評価のみ）"
	if p, ok := b.deps.Catalog.Match(safe); ok {
		addon = fmt.Sprintf("企業アドオン: %s（適用）", p.Label)
	}
	return []string{strings.Join([]string{
		"企業設定を保存しました：" + safe,
		addon,
		"続けてES本文を送ってください。",
	}, "\n")}, nil
}

type essayRoute struct{}

func (essayRoute) Name() string { return "essay" }

func (essayRoute) Match(Message) bool { return true }

func (essayRoute) Handle(ctx context.Context, b *Bot, msg Message) ([]string, error) {
	log := b.deps.Logger.With(zap.String(logger.FieldUser, msg.User))

	name, essay := splitCompanyAndEssay(msg.Text)
	company := SanitizeCompany(name)
	if company != "" {
		if err := b.deps.Store.SetCompany(ctx, msg.User, company); err != nil {
			log.Warn("save company", zap.Error(err))
		}
	} else {
		cached, err := b.deps.Store.Company(ctx, msg.User)
		if err != nil {
			log.Warn("load company", zap.Error(err))
		}
		company = cached
	}

	length := paginate.Length(essay)
	if length < b.cfg.MinChars {
		return []string{strings.Join([]string{
			fmt.Sprintf("ES本文をそのまま貼って送ってください（目安: %d文字以上）。", b.cfg.MinChars),
			"※企業アドオンを使う場合は「企業: パナソニック」のように冒頭1行で指定できます。",
			"（困ったら「ヘルプ」と送ってください）",
		}, "\n")}, nil
	}
	if length > b.cfg.MaxChars {
		return []string{fmt.Sprintf("ES本文が長すぎます（%d文字／上限: %d文字）。設問ごとに分けて送ってください。", length, b.cfg.MaxChars)}, nil
	}

	out := b.deps.Reviewer.Evaluate(ctx, evaluator.Input{Essay: essay, Company: company, User: msg.User})
	b.record(out, msg.User)

	if !out.OK() {
		return []string{failureReply}, nil
	}
	return b.paginate(ctx, msg.User, out.Text), nil
}

func (b *Bot) record(out *evaluator.Outcome, user string) {
	if b.deps.Recorder == nil || out == nil {
		return
	}
	if err := b.deps.Recorder.Upsert(ledger.FromOutcome(out, user, b.now())); err != nil {
		b.deps.Logger.Warn("record evaluation", zap.String(logger.FieldRequestID, out.ID), zap.Error(err))
	}
}
