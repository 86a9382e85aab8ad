package sse

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataLine(t *testing.T, content string) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"choices": []any{map[string]any{"delta": map[string]any{"content": content}}},
	})
	require.NoError(t, err)
	return DataPrefix + string(b) + "\n"
}

func collect(p *Parser, chunks ...string) (string, bool) {
	var out strings.Builder
	done := false
	for _, c := range chunks {
		if p.Feed(c, func(d string) { out.WriteString(d) }) {
			done = true
			break
		}
	}
	if !done {
		p.Flush(func(d string) { out.WriteString(d) })
	}
	return out.String(), done
}

func TestParserSkipsCommentsBlankAndForeignLines(t *testing.T) {
	t.Parallel()

	stream := ": keepalive\n\nevent: message\nid: 7\n" + dataLine(t, "Hi") + "\r\n" + dataLine(t, " there") + "data: [DONE]\n"
	got, done := collect(NewParser(), stream)

	assert.True(t, done)
	assert.Equal(t, "Hi there", got)
}

func TestParserStripsCarriageReturn(t *testing.T) {
	t.Parallel()

	line := strings.TrimSuffix(dataLine(t, "crlf"), "\n") + "\r\n"
	got, _ := collect(NewParser(), line)
	assert.Equal(t, "crlf", got)
}

func TestParserSplitFrameAtEveryOffset(t *testing.T) {
	t.Parallel()

	stream := dataLine(t, "Percent = part / whole x 100 ✅") + dataLine(t, "next") + "data: [DONE]\n"
	want, _ := collect(NewParser(), stream)
	require.Equal(t, "Percent = part / whole x 100 ✅next", want)

	for i := 1; i < len(stream); i++ {
		got, done := collect(NewParser(), stream[:i], stream[i:])
		assert.Truef(t, done, "offset %d", i)
		assert.Equalf(t, want, got, "offset %d", i)
	}
}

func TestParserPushesBackIncompleteJSONLine(t *testing.T) {
	t.Parallel()

	p := NewParser()
	var out strings.Builder
	emit := func(d string) { out.WriteString(d) }

	// A newline inside the payload terminates the line early; the JSON
	// fragment must wait until the rest arrives.
	assert.False(t, p.Feed("data: {\"choices\":[{\"delta\":\n", emit))
	assert.Empty(t, out.String())
	assert.Positive(t, p.Buffered())

	assert.False(t, p.Feed("{\"content\":\"late\"}}]}\n", emit))
	assert.Empty(t, out.String(), "broken line stays pushed back until the stream ends")

	p.Flush(emit)
	assert.Equal(t, "", out.String(), "unparseable residue is dropped on flush")
}

func TestParserFlushHandlesUnterminatedTail(t *testing.T) {
	t.Parallel()

	tail := strings.TrimSuffix(dataLine(t, "tail"), "\n")
	got, done := collect(NewParser(), dataLine(t, "head "), tail)
	assert.False(t, done)
	assert.Equal(t, "head tail", got)
}

func TestParserIgnoresFramesWithoutContent(t *testing.T) {
	t.Parallel()

	stream := "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n" +
		"data: {\"choices\":[]}\n" +
		"data: {}\n" +
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n" +
		"data: [DONE]\n"
	got, done := collect(NewParser(), stream)
	assert.True(t, done)
	assert.Empty(t, got)
}

func TestParserIgnoresInputAfterDone(t *testing.T) {
	t.Parallel()

	p := NewParser()
	got, done := collect(p, "data: [DONE]\n"+dataLine(t, "ignored"))
	assert.True(t, done)
	assert.Empty(t, got)
	assert.True(t, p.Feed(dataLine(t, "still ignored"), func(string) { t.Fatal("emit after done") }))
}

func TestFrameContent(t *testing.T) {
	t.Parallel()

	var f Frame
	require.NoError(t, json.Unmarshal([]byte(`{"choices":[{"delta":{"content":"x"},"finish_reason":"stop"}]}`), &f))
	assert.Equal(t, "x", f.Content())
	assert.Equal(t, "stop", f.FinishReason())

	var empty Frame
	assert.Empty(t, empty.Content())
	assert.Empty(t, empty.FinishReason())
}
