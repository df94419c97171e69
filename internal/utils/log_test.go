package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit hides the text", input: "私の強みは粘り強さです。", limit: 0, expect: ""},
		{name: "short essay kept", input: "学生時代に力を入れたこと", limit: 20, expect: "学生時代に力を入れたこと"},
		{name: "counts runes not bytes", input: "志望動機は明確です", limit: 4, expect: "志望動機..."},
		{name: "collapses line breaks", input: "  A) 総評\n\n  論理は明確。\r\n", limit: 50, expect: "A) 総評 論理は明確。"},
		{name: "collapses before cutting", input: "一行目\n\n\n二行目", limit: 5, expect: "一行目 二..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
