package sse

import (
	"encoding/json"
	"strings"
)

type lineKind int

const (
	lineSkip lineKind = iota
	lineDelta
	lineDone
	lineMalformed
)

// Parser extracts token deltas from decoded SSE text. It is not safe for
// concurrent use; one exchange owns one Parser.
type Parser struct {
	buf  string
	done bool
}

// NewParser returns an empty parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends text and processes every complete line, calling emit for each
// non-empty delta. A line whose payload is not valid JSON yet is pushed back
// in front of the buffer and processing stops until more text arrives.
// Feed reports true once the [DONE] sentinel has been seen; further input is ignored.
func (p *Parser) Feed(text string, emit func(delta string)) bool {
	if p.done {
		return true
	}
	p.buf += text

	for {
		idx := strings.IndexByte(p.buf, '\n')
		if idx < 0 {
			return false
		}
		line := p.buf[:idx]
		p.buf = p.buf[idx+1:]

		kind, delta := parseLine(line)
		switch kind {
		case lineDone:
			p.done = true
			p.buf = ""
			return true
		case lineMalformed:
			p.buf = line + "\n" + p.buf
			return false
		case lineDelta:
			if delta != "" {
				emit(delta)
			}
		}
	}
}

// Flush processes whatever is left in the buffer once the stream has ended.
// Malformed payloads are dropped since no more bytes will arrive.
func (p *Parser) Flush(emit func(delta string)) {
	if p.done {
		return
	}
	rest := p.buf
	p.buf = ""
	if strings.TrimSpace(rest) == "" {
		return
	}

	for _, line := range strings.Split(rest, "\n") {
		kind, delta := parseLine(line)
		if kind == lineDone {
			p.done = true
			return
		}
		if kind == lineDelta && delta != "" {
			emit(delta)
		}
	}
}

// Done reports whether the [DONE] sentinel has been seen.
func (p *Parser) Done() bool {
	return p.done
}

// Buffered returns the number of bytes waiting for a line terminator or more data.
func (p *Parser) Buffered() int {
	return len(p.buf)
}

func parseLine(line string) (lineKind, string) {
	line = strings.TrimSuffix(line, "\r")
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, ":") {
		return lineSkip, ""
	}
	if !strings.HasPrefix(line, DataPrefix) {
		return lineSkip, ""
	}

	payload := strings.TrimSpace(line[len(DataPrefix):])
	if payload == DoneSentinel {
		return lineDone, ""
	}

	var f Frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return lineMalformed, ""
	}
	return lineDelta, f.Content()
}
