package companies

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Japanese legal entity forms, removed wherever they appear. NFKC folds
// （株） and ㈱ into (株) before this list is applied.
var legalForms = []string{
	"株式会社", "有限会社", "合同会社", "合資会社", "合名会社", "(株)", "(有)", "(同)",
}

// Trailing English entity words.
var legalSuffixes = map[string]bool{
	"inc": true, "inc.": true, "corp": true, "corp.": true, "corporation": true,
	"co": true, "co.": true, "co.,": true, "ltd": true, "ltd.": true, "co.,ltd.": true, "co.,ltd": true,
	"k.k.": true, "kk": true,
}

// NormalizeName folds width and case, strips legal entity forms and removes
// whitespace so that "Panasonic Holdings" and "panasonicholdings" compare equal.
func NormalizeName(name string) string {
	s := strings.ToLower(norm.NFKC.String(name))
	for _, form := range legalForms {
		s = strings.ReplaceAll(s, form, " ")
	}

	fields := strings.Fields(s)
	for len(fields) > 1 && legalSuffixes[strings.TrimSuffix(fields[len(fields)-1], ",")] {
		fields = fields[:len(fields)-1]
	}

	return strings.Join(fields, "")
}
