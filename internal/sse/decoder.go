package sse

import (
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Decoder converts a byte stream to UTF-8 text chunk by chunk. An incomplete
// rune at the end of a chunk is held until the next call; invalid sequences
// become U+FFFD.
type Decoder struct {
	t       transform.Transformer
	pending []byte
}

// NewDecoder returns a streaming UTF-8 decoder.
func NewDecoder() *Decoder {
	return &Decoder{t: unicode.UTF8.NewDecoder()}
}

// Decode converts chunk, prefixed by any bytes held from the previous call.
// Pass final=true once the stream has ended to release held bytes.
func (d *Decoder) Decode(chunk []byte, final bool) string {
	src := make([]byte, 0, len(d.pending)+len(chunk))
	src = append(src, d.pending...)
	src = append(src, chunk...)
	d.pending = nil
	if len(src) == 0 {
		return ""
	}

	var out strings.Builder
	// U+FFFD takes three bytes, so one invalid byte can triple in size.
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	for {
		nDst, nSrc, err := d.t.Transform(dst, src, final)
		out.Write(dst[:nDst])
		src = src[nSrc:]

		switch {
		case err == nil:
			return out.String()
		case errors.Is(err, transform.ErrShortSrc):
			d.pending = append(d.pending, src...)
			return out.String()
		case errors.Is(err, transform.ErrShortDst) && (nDst > 0 || nSrc > 0):
			continue
		default:
			return out.String()
		}
	}
}
