package paginate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reassemble(res Result) string {
	var b strings.Builder
	for i, chunk := range res.Chunks {
		if i == len(res.Chunks)-1 && res.HasMore() {
			chunk = StripNotice(chunk)
		}
		b.WriteString(chunk)
	}
	b.WriteString(res.Rest)
	return b.String()
}

func TestSplitEmptyInput(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", "   ", "\r\n\r\n"} {
		res := Split(input, 100, 3)
		require.Equal(t, []string{EmptyPlaceholder}, res.Chunks)
		assert.Empty(t, res.Rest)
	}
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	t.Parallel()

	res := Split("  line one\r\nline two\rline three  ", 100, 3)
	require.Len(t, res.Chunks, 1)
	assert.Equal(t, "line one\nline two\nline three", res.Chunks[0])
	assert.False(t, res.HasMore())
}

func TestSplitPrefersDoubleNewline(t *testing.T) {
	t.Parallel()

	// "\n\n" at 70 and "。" at 90 both sit above the 60% threshold of 100.
	text := strings.Repeat("a", 70) + "\n\n" + strings.Repeat("b", 18) + "。" + strings.Repeat("c", 60)

	res := Split(text, 100, 5)
	require.GreaterOrEqual(t, len(res.Chunks), 2)
	assert.Equal(t, strings.Repeat("a", 70)+"\n\n", res.Chunks[0])
}

func TestSplitIgnoresBreaksBelowThreshold(t *testing.T) {
	t.Parallel()

	// the only break sits at 10, below 60% of 100, so the cut is exactly at maxLen.
	text := strings.Repeat("a", 10) + "\n\n" + strings.Repeat("b", 150)

	res := Split(text, 100, 5)
	assert.Equal(t, 100, utf8.RuneCountInString(res.Chunks[0]))
}

func TestSplitLaterPositionWinsWithinTier(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("あ", 65) + "。" + strings.Repeat("い", 20) + "。" + strings.Repeat("う", 40)

	res := Split(text, 100, 5)
	assert.Equal(t, strings.Repeat("あ", 65)+"。"+strings.Repeat("い", 20)+"。", res.Chunks[0])
}

func TestSplitJapanesePeriodBeatsNewline(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 62) + "。" + strings.Repeat("y", 20) + "\n" + strings.Repeat("z", 50)

	res := Split(text, 100, 5)
	assert.Equal(t, strings.Repeat("x", 62)+"。", res.Chunks[0])
}

func TestSplitCarriesRestWithNotice(t *testing.T) {
	t.Parallel()

	paragraph := strings.Repeat("段", 70) + "\n\n"
	text := strings.Repeat(paragraph, 10)

	res := Split(text, 100, 2)
	require.Len(t, res.Chunks, 2)
	require.True(t, res.HasMore())
	assert.True(t, strings.HasSuffix(res.Chunks[1], ContinuationNotice))
	assert.Equal(t, Normalize(text), reassemble(res))

	next := Split(res.Rest, 100, 2)
	assert.NotEmpty(t, next.Chunks)
}

func TestSplitTruncatesLastChunkForNotice(t *testing.T) {
	t.Parallel()

	// no break tokens at all, every chunk is cut at maxLen and the notice cannot fit.
	text := strings.Repeat("字", 500)

	res := Split(text, 60, 2)
	require.Len(t, res.Chunks, 2)
	last := res.Chunks[1]
	assert.True(t, strings.HasSuffix(last, Ellipsis+ContinuationNotice))
	assert.Equal(t, 60, utf8.RuneCountInString(last))
	assert.Equal(t, Normalize(text), reassemble(res))
}

func TestSplitProperties(t *testing.T) {
	t.Parallel()

	samples := []string{
		strings.Repeat("今日は晴れです。明日は雨かもしれません！", 80),
		strings.Repeat("First sentence. Second one? Third!\n", 120),
		strings.Repeat("para\r\n\r\n", 300) + "tail",
		strings.Repeat("🙂", 1000),
		"  " + strings.Repeat("mixed 文字 😀 text\n\n", 90) + "  ",
	}
	bounds := []struct{ maxLen, maxChunks int }{
		{27, 4}, {50, 1}, {60, 3}, {100, 5}, {333, 2}, {4900, 5},
	}

	for _, s := range samples {
		for _, b := range bounds {
			res := Split(s, b.maxLen, b.maxChunks)
			require.LessOrEqual(t, len(res.Chunks), b.maxChunks)
			for _, chunk := range res.Chunks {
				require.LessOrEqual(t, Length(chunk), b.maxLen)
				require.True(t, utf8.ValidString(chunk))
			}
			require.Equal(t, Normalize(s), reassemble(res), "maxLen=%d maxChunks=%d", b.maxLen, b.maxChunks)
		}
	}
}

func TestSplitDefaults(t *testing.T) {
	t.Parallel()

	res := Split(strings.Repeat("a", DefaultMaxLen*6), 0, 0)
	assert.Len(t, res.Chunks, DefaultMaxChunks)
	assert.True(t, res.HasMore())
}

func TestSplitCountsUTF16Units(t *testing.T) {
	t.Parallel()

	// every 😀 is one rune but two UTF-16 units, as LINE counts it.
	text := strings.Repeat("よい点です😀。", 4000)

	res := Split(text, DefaultMaxLen, DefaultMaxChunks)
	require.True(t, res.HasMore())
	for i, chunk := range res.Chunks {
		assert.LessOrEqual(t, Length(chunk), DefaultMaxLen, "chunk %d", i)
		assert.True(t, utf8.ValidString(chunk))
	}
	assert.Equal(t, Normalize(text), reassemble(res))
}

func TestSplitNeverCutsSurrogatePairs(t *testing.T) {
	t.Parallel()

	text := "a" + strings.Repeat("😀", 200)

	res := Split(text, 50, 3)
	for _, chunk := range res.Chunks {
		require.True(t, utf8.ValidString(chunk))
		require.LessOrEqual(t, Length(chunk), 50)
	}
	assert.Equal(t, "a"+strings.Repeat("😀", 24), res.Chunks[0])
	assert.Equal(t, Normalize(text), reassemble(res))
}

func TestSplitRaisesTinyLimitsToFitNotice(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("字", 200)

	for _, maxLen := range []int{1, 10, 24, MinMaxLen - 1} {
		res := Split(text, maxLen, 2)
		require.True(t, res.HasMore(), "maxLen=%d", maxLen)
		last := res.Chunks[len(res.Chunks)-1]
		assert.True(t, strings.HasSuffix(last, ContinuationNotice), "maxLen=%d", maxLen)
		for _, chunk := range res.Chunks {
			assert.LessOrEqual(t, Length(chunk), MinMaxLen)
		}
		assert.Equal(t, Normalize(text), reassemble(res))
	}
}

func TestLengthAndTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, Length(""))
	assert.Equal(t, 3, Length("abc"))
	assert.Equal(t, 2, Length("志望"))
	assert.Equal(t, 5, Length("a😀🙂"))
	assert.Equal(t, Length(ContinuationNotice)+Length(Ellipsis)+2, MinMaxLen)

	assert.Equal(t, "a😀", Truncate("a😀🙂", 4))
	assert.Equal(t, "a", Truncate("a😀🙂", 2))
	assert.Equal(t, "a😀🙂", Truncate("a😀🙂", 5))
	assert.Equal(t, "", Truncate("😀", 1))
}
