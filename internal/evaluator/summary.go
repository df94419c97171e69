package evaluator

import (
	"fmt"
	"strings"

	"github.com/spigell/es-reviewer/internal/fit"
	"github.com/spigell/es-reviewer/internal/scorecard"
)

// SummaryHeader opens the block computed by the service.
const SummaryHeader = "E) 集計（システム計算）"

const decisionNote = "(AIの一次判定。最終判断は人が行います)"

// RenderSummary formats the computed block appended under the model text.
func RenderSummary(r *Report) string {
	var sb strings.Builder
	sb.WriteString(SummaryHeader)
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "BASE: n=%d/%d trust=%s quality=%d conservative=%d\n",
		r.Base.N, scorecard.DimensionCount, r.Base.Trust, r.Base.Quality, r.Base.Conservative)

	if c := r.Selected; c != nil {
		hits := "-"
		if len(c.Fit.Hits) > 0 {
			hits = strings.Join(c.Fit.Hits, ",")
		}
		fmt.Fprintf(&sb, "COMPANY: %s quality=%d conservative=%d cov=%.2f fit=%+d (bonus %d penalty %d cov %.2f) final=%d hits=%s",
			c.Label, c.Quality, c.Conservative, c.Coverage, c.Fit.Net, c.Fit.Bonus, c.Fit.Penalty, c.Fit.Coverage, c.Final, hits)
		if c.Reference {
			sb.WriteString(" 参考")
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "TOP3: %s\n", topLine(r.Top))
	fmt.Fprintf(&sb, "IMPROVE_TOP3: %s\n", improveLine(r.Improve))
	fmt.Fprintf(&sb, "DECISION: %s %s", r.Decision.Label(), decisionNote)

	return sb.String()
}

func topLine(top []fit.CompanyResult) string {
	if len(top) == 0 {
		return "-"
	}
	labels := make([]string, 0, len(top))
	for _, c := range top {
		labels = append(labels, c.Label)
	}
	return strings.Join(labels, " / ")
}

func improveLine(targets []fit.Target) string {
	if len(targets) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(targets))
	for _, t := range targets {
		parts = append(parts, fmt.Sprintf("%s%s: %s", t.Dimension, t.Dimension.Name(), t.Reason))
	}
	return strings.Join(parts, " / ")
}
