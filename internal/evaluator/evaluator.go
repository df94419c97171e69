// Package evaluator runs one essay review end to end: instructions, the
// model call under a deadline, interpretation, parsing and aggregation.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/es-reviewer/internal/ai"
	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/fit"
	"github.com/spigell/es-reviewer/internal/logger"
	"github.com/spigell/es-reviewer/internal/prompt"
	"github.com/spigell/es-reviewer/internal/scorecard"
	"github.com/spigell/es-reviewer/internal/utils"
)

const (
	DefaultTimeout      = 50 * time.Second
	defaultMaxLogLength = 200
	// companyWorkers bounds the parallel per-company scoring.
	companyWorkers = 4
)

// Options tunes the model call. Zero values fall back to transport defaults.
type Options struct {
	Model                string
	Timeout              time.Duration
	MaxOutputTokens      int
	Temperature          *float64
	Verbosity            string
	ReasoningEffort      string
	Structured           bool
	PromptCacheKey       string
	PromptCacheRetention string
	EvidenceLimit        int
	MaxLogLength         int
}

// Input is one review request.
type Input struct {
	Essay   string
	Company string
	User    string
}

// Outcome is the result of Evaluate. Report is nil unless the model returned
// usable text.
type Outcome struct {
	ID      string
	Company string
	Result  ai.Result
	Report  *Report
	// Text is the model text followed by the computed summary.
	Text     string
	Duration time.Duration
}

func (o *Outcome) OK() bool {
	return o != nil && o.Result.OK
}

// Report is the aggregation computed from the model text.
type Report struct {
	Scores        scorecard.ScoreTable
	Signals       scorecard.Signals
	Flags         scorecard.Flags
	CapViolations []scorecard.Dimension
	Base          fit.Base
	Companies     []fit.CompanyResult
	Selected      *fit.CompanyResult
	Top           []fit.CompanyResult
	Improve       []fit.Target
	Decision      fit.Decision
}

// Evaluator is safe for concurrent use.
type Evaluator struct {
	transport ai.Transport
	catalog   *companies.Catalog
	builder   *prompt.Builder
	opts      Options
	logger    *zap.Logger
}

func New(transport ai.Transport, catalog *companies.Catalog, builder *prompt.Builder, opts Options, log *zap.Logger) (*Evaluator, error) {
	if transport == nil {
		return nil, fmt.Errorf("evaluator transport: %w", ai.ErrNotConfigured)
	}
	if catalog == nil {
		return nil, errors.New("evaluator requires a company catalog")
	}
	if builder == nil {
		builder = prompt.NewBuilder(catalog)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}
	if opts.EvidenceLimit <= 0 {
		opts.EvidenceLimit = scorecard.DefaultEvidenceLen
	}

	return &Evaluator{
		transport: transport,
		catalog:   catalog,
		builder:   builder,
		opts:      opts,
		logger:    logger.WithCommonFields(log, transport.Provider(), opts.Model),
	}, nil
}

// Evaluate never returns an error: transport failures, timeouts and refusals
// are reported through Outcome.Result.
func (e *Evaluator) Evaluate(ctx context.Context, in Input) *Outcome {
	started := time.Now()
	label, _ := e.builder.CompanyLabel(in.Company)
	out := &Outcome{ID: uuid.NewString(), Company: label}
	log := logger.WithFields(e.logger, logger.ReviewFields(out.ID, in.User, in.Company)...)

	req := &ai.Request{
		Model:                e.opts.Model,
		Instructions:         e.builder.Instructions(in.Company, e.opts.Structured),
		Input:                prompt.WrapInput(in.Essay),
		MaxOutputTokens:      e.opts.MaxOutputTokens,
		Temperature:          e.opts.Temperature,
		Verbosity:            e.opts.Verbosity,
		ReasoningEffort:      e.opts.ReasoningEffort,
		Structured:           e.opts.Structured,
		PromptCacheKey:       e.opts.PromptCacheKey,
		PromptCacheRetention: e.opts.PromptCacheRetention,
	}

	log.Debug("model request",
		zap.Int("essay_length", utf8.RuneCountInString(in.Essay)),
		zap.String("essay_preview", utils.TruncateForLog(in.Essay, e.opts.MaxLogLength)),
		zap.Int("instructions_length", utf8.RuneCountInString(req.Instructions)),
	)

	callCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	resp, err := e.transport.Create(callCtx, req)
	cancel()

	if err != nil {
		out.Result = ai.FromError(err)
	} else {
		out.Result = ai.Interpret(resp, e.opts.Structured)
	}
	out.Duration = time.Since(started)

	if !out.Result.OK {
		log.Warn("model call did not produce a review",
			zap.String("state", string(out.Result.State)),
			zap.String("error", out.Result.Error),
			zap.String("reason", out.Result.Reason),
			zap.Duration("duration", out.Duration),
		)
		return out
	}

	log.Debug("model response",
		zap.String("state", string(out.Result.State)),
		zap.Int("response_length", utf8.RuneCountInString(out.Result.Text)),
		zap.String("response_preview", utils.TruncateForLog(out.Result.Text, e.opts.MaxLogLength)),
	)

	out.Report = e.Aggregate(ctx, out.Result.Text, in.Company, log)
	out.Text = out.Result.Text + "\n\n" + RenderSummary(out.Report)

	log.Info("review completed",
		zap.String("state", string(out.Result.State)),
		zap.Int("observed", out.Report.Base.N),
		zap.Int("conservative", out.Report.Base.Conservative),
		zap.String("decision", string(out.Report.Decision)),
		zap.Duration("duration", out.Duration),
	)

	return out
}

// Aggregate parses the model text and computes every score. Confidence caps
// are enforced before aggregation.
func (e *Evaluator) Aggregate(ctx context.Context, text, company string, log *zap.Logger) *Report {
	log = logger.OrNop(log)

	raw := scorecard.ParseScores(text)
	violations := raw.CapViolations()
	for _, d := range violations {
		entry := raw[d]
		log.Warn("score exceeds confidence cap",
			zap.Int("dimension", int(d)),
			zap.Int("score", entry.Score),
			zap.String("confidence", entry.Confidence.String()),
			zap.Int("cap", entry.Confidence.MaxScore()),
		)
	}
	table := raw.Capped()

	signals := scorecard.ParseSignalsWithLimit(text, e.opts.EvidenceLimit)
	flags := scorecard.ParseFlags(text)
	base := fit.BaseScore(table)
	results := scoreCompanies(ctx, e.catalog.Profiles(), table, signals)

	report := &Report{
		Scores:        table,
		Signals:       signals,
		Flags:         flags,
		CapViolations: violations,
		Base:          base,
		Companies:     results,
		Top:           fit.Top(results, 3),
		Improve:       fit.ImproveTargets(table, 3),
		Decision:      fit.Decide(base, flags, table),
	}

	if _, profile := e.builder.CompanyLabel(company); profile != nil {
		for i := range results {
			if results[i].ID == profile.ID {
				report.Selected = &results[i]
				break
			}
		}
	}

	return report
}

func scoreCompanies(ctx context.Context, profiles []*companies.Profile, table scorecard.ScoreTable, signals scorecard.Signals) []fit.CompanyResult {
	results := make([]fit.CompanyResult, len(profiles))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(companyWorkers)
	for i, p := range profiles {
		g.Go(func() error {
			results[i] = fit.CompanyScore(p, table, signals)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
