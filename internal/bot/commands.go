package bot

import (
	"regexp"
	"strings"

	"github.com/spigell/es-reviewer/internal/companies"
)

const maxCompanyLen = 80

var (
	helpCommand         = regexp.MustCompile(`(?i)^(ヘルプ|help|\?|？|使い方)$`)
	resetCommand        = regexp.MustCompile(`(?i)^(リセット|reset|初期化)$`)
	continuationCommand = regexp.MustCompile(`(?i)^(続き|つづき|next|more)$`)
	catalogCommand      = regexp.MustCompile(`(?i)^(企業一覧|企業情報|企業情報を見る|companies)$`)
	companyLine         = regexp.MustCompile(`(?i)^(?:企業|会社|応募企業)\s*[:：=]\s*(.+)$`)

	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	zeroWidth    = regexp.MustCompile(`[\x{200B}-\x{200F}\x{FEFF}]`)
	lineBreaks   = regexp.MustCompile(`[\n\t]+`)
	markupChars  = regexp.MustCompile("[`<>]")
)

// HelpText is sent for the help command and on follow.
var HelpText = strings.Join([]string{
	"【使い方】",
	"1) ES本文をそのまま貼り付けて送ってください（個人情報は伏せてOK）。",
	"2) 企業アドオンを使う場合は、本文の冒頭に1行だけ追加します：",
	"   例）企業: パナソニック",
	"",
	"【コマンド】",
	"- ヘルプ：この案内を表示",
	"- リセット：企業設定/続き状態をリセット",
	"- 続き：前回の返答の続き（残り）があれば表示",
	"- 企業一覧：企業アドオンを使える企業を表示",
}, "\n")

const (
	resetReply          = "状態をリセットしました。ES本文を送ってください。"
	noContinuationReply = "（続きはありません。新しいES本文を送ってください）"
	badCompanyReply     = "企業名の指定に不適切な文字列が含まれているため、保存できませんでした。"
	failureReply        = "すみません、評価に失敗しました。\n少し待ってもう一度送ってください（長文は分割して送ると安定します）。"
)

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

// companyOnly returns the company of a single-line company command.
func companyOnly(text string) (string, bool) {
	t := strings.TrimSpace(normalizeNewlines(text))
	if strings.Contains(t, "\n") {
		return "", false
	}
	m := companyLine.FindStringSubmatch(t)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}

// splitCompanyAndEssay reads an optional company line before the essay. The
// first non-blank line is the only one considered.
func splitCompanyAndEssay(text string) (string, string) {
	norm := normalizeNewlines(text)
	lines := strings.Split(norm, "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i < len(lines) {
		if m := companyLine.FindStringSubmatch(strings.TrimSpace(lines[i])); m != nil {
			return strings.TrimSpace(m[1]), strings.TrimSpace(strings.Join(lines[i+1:], "\n"))
		}
	}
	return "", strings.TrimSpace(norm)
}

// SanitizeCompany strips control, zero-width and markup characters, folds
// line breaks into spaces and caps the length.
func SanitizeCompany(name string) string {
	t := normalizeNewlines(name)
	t = controlChars.ReplaceAllString(t, "")
	t = zeroWidth.ReplaceAllString(t, "")
	t = strings.TrimSpace(lineBreaks.ReplaceAllString(t, " "))
	t = markupChars.ReplaceAllString(t, "")
	if runes := []rune(t); len(runes) > maxCompanyLen {
		t = strings.TrimSpace(string(runes[:maxCompanyLen]))
	}
	return t
}

// catalogText lists the companies with an addon and how to pick one.
func catalogText(profiles []*companies.Profile) string {
	lines := []string{"【企業アドオン一覧】"}
	for _, p := range profiles {
		line := "- " + p.Label
		if len(p.Aliases) > 0 {
			line += "（" + strings.Join(p.Aliases, "、") + "）"
		}
		lines = append(lines, line)
	}
	lines = append(lines,
		"",
		"本文の冒頭に「企業: パナソニック」のように1行書くと、その企業の観点でも評価します。",
		"一覧にない企業はベース評価のみになります。",
	)
	return strings.Join(lines, "\n")
}

