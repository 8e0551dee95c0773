package httpclient

import (
	"bytes"
	"encoding/json"
)

var emptyRecord = json.RawMessage(`{}`)

// Normalize turns an untrusted upstream body into JSON.
//
// Clean JSON is returned as is. Markup (an HTML error page) yields
// ErrNonDataResponse. Otherwise the first balanced object or array that
// decodes is returned, and when nothing can be recovered the result is an
// empty record. The empty-record fallback is the only lossy path.
func Normalize(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return emptyRecord, nil
	}
	if json.Valid(trimmed) {
		return append(json.RawMessage(nil), trimmed...), nil
	}
	if looksLikeMarkup(trimmed) {
		return nil, ErrNonDataResponse
	}
	if embedded, ok := firstBalanced(trimmed); ok {
		return embedded, nil
	}
	return emptyRecord, nil
}

func looksLikeMarkup(b []byte) bool {
	lower := bytes.ToLower(b)
	return bytes.Contains(lower, []byte("<!doctype")) || bytes.Contains(lower, []byte("<html"))
}

// firstBalanced returns the earliest outermost '{' or '[' span that closes
// and decodes. One pass pairs every opener with its closer, skipping string
// literals inside open spans; a mismatched closer abandons the openers still
// pending. Spans nested in a closed span are not tried on their own, so each
// byte is validated at most once.
func firstBalanced(b []byte) (json.RawMessage, bool) {
	type span struct{ start, end int }
	var (
		open     []int
		closed   []span
		inString bool
		escaped  bool
	)
	// flush validates the outermost closed spans in order. No later opener
	// can enclose them once nothing is pending.
	flush := func() (json.RawMessage, bool) {
		for _, sp := range closed {
			if candidate := b[sp.start : sp.end+1]; json.Valid(candidate) {
				return append(json.RawMessage(nil), candidate...), true
			}
		}
		closed = closed[:0]
		return nil, false
	}

	for i := 0; i < len(b); i++ {
		c := b[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = len(open) > 0
		case '{', '[':
			open = append(open, i)
		case '}', ']':
			if len(open) == 0 {
				continue
			}
			start := open[len(open)-1]
			if closerFor(b[start]) != c {
				open = open[:0]
			} else {
				open = open[:len(open)-1]
				for len(closed) > 0 && closed[len(closed)-1].start > start {
					closed = closed[:len(closed)-1]
				}
				closed = append(closed, span{start, i})
			}
			if len(open) == 0 {
				if out, ok := flush(); ok {
					return out, true
				}
			}
		}
	}
	return flush()
}

func closerFor(opener byte) byte {
	if opener == '{' {
		return '}'
	}
	return ']'
}
