package evaluator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/es-reviewer/internal/ai"
	"github.com/spigell/es-reviewer/internal/companies"
	"github.com/spigell/es-reviewer/internal/fit"
	"github.com/spigell/es-reviewer/internal/prompt"
	"github.com/spigell/es-reviewer/internal/scorecard"
)

type fakeTransport struct {
	mu       sync.Mutex
	requests []*ai.Request
	create   func(ctx context.Context, req *ai.Request) (*ai.Response, error)
}

func (f *fakeTransport) Create(ctx context.Context, req *ai.Request) (*ai.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.create(ctx, req)
}

func (f *fakeTransport) Provider() string {
	return "fake"
}

func replyWith(text string) func(context.Context, *ai.Request) (*ai.Response, error) {
	return func(context.Context, *ai.Request) (*ai.Response, error) {
		return &ai.Response{Status: ai.StatusCompleted, Output: []ai.OutputItem{{
			Type:    ai.ItemTypeMessage,
			Status:  ai.StatusCompleted,
			Content: []ai.ContentPart{{Type: ai.PartOutputText, Text: text}},
		}}}, nil
	}
}

// review builds a model reply scoring every dimension with the same score
// and confidence label.
func review(score int, conf string) string {
	var sb strings.Builder
	sb.WriteString("A) ES要約\nS: 学園祭の運営\nB) 10観点スコアカード\n")
	for _, d := range scorecard.Dimensions() {
		fmt.Fprintf(&sb, "%s%s: S=%d | C=%s | 根拠=「具体的な行動」 | 不足=なし\n", d, d.Name(), score, conf)
	}
	sb.WriteString("D) リスク/懸念\n[CHECK] 数値の出典\n")
	sb.WriteString("SIGNALS: WILL=1,EMPATHY=1,INTEGRITY=1\n")
	sb.WriteString(`SIG_EVID: WILL="来場者を倍にしたい"|EMPATHY="出店者の不安を聞き"|INTEGRITY="ミスを正直に報告"` + "\n")
	return sb.String()
}

func newEvaluator(t *testing.T, transport ai.Transport, opts Options, log *zap.Logger) *Evaluator {
	t.Helper()

	catalog, err := companies.Default()
	require.NoError(t, err)

	ev, err := New(transport, catalog, prompt.NewBuilder(catalog), opts, log)
	require.NoError(t, err)
	return ev
}

func TestEvaluateAppendsComputedSummary(t *testing.T) {
	t.Parallel()

	reply := review(4, "高")
	transport := &fakeTransport{create: replyWith(reply)}
	ev := newEvaluator(t, transport, Options{Model: "gpt-5.2", Structured: false}, nil)

	out := ev.Evaluate(context.Background(), Input{Essay: "私は学園祭で…", Company: "パナソニック", User: "U1"})

	require.True(t, out.OK())
	assert.NotEmpty(t, out.ID)
	assert.Equal(t, "パナソニック", out.Company)
	assert.True(t, strings.HasPrefix(out.Text, reply))

	require.Len(t, transport.requests, 1)
	req := transport.requests[0]
	assert.Equal(t, "gpt-5.2", req.Model)
	assert.Contains(t, req.Instructions, "パナソニック")
	assert.Contains(t, req.Input, "<BEGIN_ES>\n私は学園祭で…\n<END_ES>")

	report := out.Report
	require.NotNil(t, report)
	assert.Equal(t, fit.Base{N: 10, Trust: fit.TrustHigh, Quality: 80, Conservative: 80}, report.Base)
	assert.Equal(t, fit.DecisionPass, report.Decision)
	assert.Len(t, report.Companies, len(ev.catalog.Profiles()))
	assert.Len(t, report.Top, 3)

	require.NotNil(t, report.Selected)
	assert.Equal(t, "panasonic", report.Selected.ID)
	assert.Equal(t, 92, report.Selected.Final)
	assert.Equal(t, []string{"WILL", "EQ", "INTEG", "WEI"}, report.Selected.Fit.Hits)

	assert.Contains(t, out.Text, "BASE: n=10/10 trust=high quality=80 conservative=80")
	assert.Contains(t, out.Text, "COMPANY: パナソニック quality=80 conservative=80 cov=1.00 fit=+12 (bonus 12 penalty 0 cov 1.00) final=92 hits=WILL,EQ,INTEG,WEI\n")
	assert.Contains(t, out.Text, "DECISION: 通過推奨 (AIの一次判定。最終判断は人が行います)")
}

func TestEvaluateUnknownCompanyHasNoCompanyLine(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{create: replyWith(review(3, "中"))}
	ev := newEvaluator(t, transport, Options{}, nil)

	out := ev.Evaluate(context.Background(), Input{Essay: "essay", Company: "架空商事"})

	require.True(t, out.OK())
	assert.Equal(t, "架空商事（アドオン未登録）", out.Company)
	assert.Nil(t, out.Report.Selected)
	assert.NotContains(t, out.Text, "COMPANY:")
	assert.Equal(t, fit.DecisionHold, out.Report.Decision)
}

func TestEvaluateCapsScoresAndWarns(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	transport := &fakeTransport{create: replyWith(review(5, "低"))}
	ev := newEvaluator(t, transport, Options{}, zap.New(core))

	out := ev.Evaluate(context.Background(), Input{Essay: "essay"})

	require.True(t, out.OK())
	assert.Len(t, out.Report.CapViolations, scorecard.DimensionCount)
	for _, d := range scorecard.Dimensions() {
		assert.Equal(t, 3, out.Report.Scores[d].Score)
	}
	assert.Equal(t, 60, out.Report.Base.Quality)
	assert.Equal(t, scorecard.DimensionCount, logs.FilterMessage("score exceeds confidence cap").Len())
}

func TestEvaluateTransportFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.WarnLevel)
	transport := &fakeTransport{create: func(context.Context, *ai.Request) (*ai.Response, error) {
		return nil, &ai.TransportError{StatusCode: http.StatusUnauthorized, Message: "invalid key"}
	}}
	ev := newEvaluator(t, transport, Options{}, zap.New(core))

	out := ev.Evaluate(context.Background(), Input{Essay: "essay"})

	assert.False(t, out.OK())
	assert.Nil(t, out.Report)
	assert.Empty(t, out.Text)
	assert.Equal(t, ai.StateTransport, out.Result.State)
	assert.Equal(t, "invalid key", out.Result.Error)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "transport_error", logs.All()[0].ContextMap()["state"])
}

func TestEvaluateTimeout(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{create: func(ctx context.Context, _ *ai.Request) (*ai.Response, error) {
		<-ctx.Done()
		return nil, &ai.TransportError{Err: ctx.Err()}
	}}
	ev := newEvaluator(t, transport, Options{Timeout: 10 * time.Millisecond}, nil)

	out := ev.Evaluate(context.Background(), Input{Essay: "essay"})

	assert.False(t, out.OK())
	assert.Equal(t, ai.StateTimeout, out.Result.State)
}

func TestEvaluateIncompleteStillAggregates(t *testing.T) {
	t.Parallel()

	partial := review(4, "高")
	transport := &fakeTransport{create: func(context.Context, *ai.Request) (*ai.Response, error) {
		return &ai.Response{
			Status:            ai.StatusIncomplete,
			IncompleteDetails: &ai.IncompleteDetails{Reason: "max_output_tokens"},
			Output: []ai.OutputItem{{
				Type:    ai.ItemTypeMessage,
				Status:  ai.StatusIncomplete,
				Content: []ai.ContentPart{{Type: ai.PartOutputText, Text: partial}},
			}},
		}, nil
	}}
	ev := newEvaluator(t, transport, Options{}, nil)

	out := ev.Evaluate(context.Background(), Input{Essay: "essay"})

	require.True(t, out.OK())
	assert.Equal(t, ai.StateIncomplete, out.Result.State)
	assert.Contains(t, out.Text, ai.TruncatedNotice)
	assert.Equal(t, 10, out.Report.Base.N)
}

func TestEvaluateGarbageRejects(t *testing.T) {
	t.Parallel()

	transport := &fakeTransport{create: replyWith("申し訳ありませんが評価できません。")}
	ev := newEvaluator(t, transport, Options{}, nil)

	out := ev.Evaluate(context.Background(), Input{Essay: "essay"})

	require.True(t, out.OK())
	assert.Equal(t, 0, out.Report.Base.N)
	assert.Equal(t, fit.DecisionReject, out.Report.Decision)
	assert.Empty(t, out.Report.Top)
	assert.Contains(t, out.Text, "TOP3: -\n")
}

func TestAggregateHonoursEvidenceLimit(t *testing.T) {
	t.Parallel()

	text := review(4, "高")
	tests := []struct {
		limit int
		want  string
	}{
		{limit: 0, want: "来場者を倍にしたい"},
		{limit: 6, want: "来場者を倍…"},
		{limit: 1, want: "来場者を…"},
	}

	for _, tt := range tests {
		ev := newEvaluator(t, &fakeTransport{}, Options{EvidenceLimit: tt.limit}, nil)
		report := ev.Aggregate(context.Background(), text, "", nil)
		assert.Equal(t, tt.want, report.Signals.Evidence[scorecard.SignalWill], "limit=%d", tt.limit)
		assert.Equal(t, scorecard.SignalYes, report.Signals.Values[scorecard.SignalWill])
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	t.Parallel()

	catalog, err := companies.Default()
	require.NoError(t, err)

	_, err = New(nil, catalog, nil, Options{}, nil)
	assert.True(t, errors.Is(err, ai.ErrNotConfigured))

	_, err = New(&fakeTransport{}, nil, nil, Options{}, nil)
	assert.Error(t, err)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	report := &Report{
		Base: fit.Base{N: 4, Trust: fit.TrustMedium, Quality: 70, Conservative: 66},
		Selected: &fit.CompanyResult{
			Label: "KDDI", Quality: 68, Conservative: 63, Coverage: 0.55, Final: 61, Reference: true,
			Fit: fit.Bonus{Bonus: 0, Penalty: 2, Net: -2, Coverage: 0.25},
		},
		Top: []fit.CompanyResult{{Label: "ロート製薬"}, {Label: "野村證券"}},
		Improve: []fit.Target{
			{Dimension: scorecard.DimensionTeamwork, Reason: "未言及（面接で確認）"},
		},
		Decision: fit.DecisionHold,
	}

	want := strings.Join([]string{
		SummaryHeader,
		"BASE: n=4/10 trust=medium quality=70 conservative=66",
		"COMPANY: KDDI quality=68 conservative=63 cov=0.55 fit=-2 (bonus 0 penalty 2 cov 0.25) final=61 hits=- 参考",
		"TOP3: ロート製薬 / 野村證券",
		"IMPROVE_TOP3: (5)協働性・チームワーク: 未言及（面接で確認）",
		"DECISION: 保留（面接で要確認） (AIの一次判定。最終判断は人が行います)",
	}, "\n")

	assert.Equal(t, want, RenderSummary(report))
}
