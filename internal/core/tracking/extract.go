// Package tracking finds carrier tracking numbers in free text and classifies
// them by carrier and confidence.
//
// Input comes from keyboard-wedge scanners, camera barcode decodes and pasted
// label or manifest text. Extraction never fails: text without candidates
// yields an empty result and the caller decides how to tell the operator.
//
// All functions are pure and safe for concurrent use.
package tracking

import (
	"strings"

	"github.com/99minutos/parcel-intake/internal/core/domain"
)

const (
	// MaxTokenLen caps the work spent on one run of letters and digits.
	// Longer runs are ignored rather than scanned.
	MaxTokenLen = 64

	minUnknownLen = 8
	maxUnknownLen = 30
	minJoinedLen  = 12
	maxJoinTokens = 8
)

// token is a maximal run of ASCII letters and digits in the input.
type token struct {
	text       string // uppercased
	start, end int    // byte offsets into the input
}

// Extract returns every distinct tracking number candidate found in input,
// in order of first appearance.
func Extract(input string) []domain.ParsedTrackingNumber {
	toks := tokenize(input)
	if len(toks) == 0 {
		return nil
	}

	var out []domain.ParsedTrackingNumber
	seen := make(map[string]struct{})
	emit := func(p domain.ParsedTrackingNumber) {
		if p.TrackingNumber == "" {
			return
		}
		if _, dup := seen[p.TrackingNumber]; dup {
			return
		}
		seen[p.TrackingNumber] = struct{}{}
		out = append(out, p)
	}

	for i := 0; i < len(toks); {
		if n, p, ok := joinGroup(input, toks, i); ok {
			emit(p)
			i += n
			continue
		}
		for _, p := range classify(input, toks[i]) {
			emit(p)
		}
		i++
	}
	return out
}

func tokenize(input string) []token {
	var toks []token
	start := -1
	for i := 0; i <= len(input); i++ {
		if i < len(input) && isAlnum(input[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			toks = append(toks, token{
				text:  strings.ToUpper(input[start:i]),
				start: start,
				end:   i,
			})
			start = -1
		}
	}
	return toks
}

// joinGroup tries to read a number printed in separated groups, such as
// "1Z 999 AA1 01 2345 6784", starting at toks[i]. A join is accepted when
// the joined form validates a checksum, or when it matches a rule known by
// its prefix and the first group is not a number on its own. Otherwise the
// tokens are classified one by one. It returns the number of tokens consumed.
func joinGroup(input string, toks []token, i int) (int, domain.ParsedTrackingNumber, bool) {
	if len(toks[i].text) > MaxTokenLen {
		return 0, domain.ParsedTrackingNumber{}, false
	}
	_, firstConf, firstOK := matchRules(toks[i].text)
	if firstOK && firstConf == domain.ConfidenceHigh {
		return 0, domain.ParsedTrackingNumber{}, false
	}

	last := i
	for last+1 < len(toks) && last+1-i < maxJoinTokens && joined(input, toks[last], toks[last+1]) {
		last++
	}

	for j := last; j > i; j-- {
		var b strings.Builder
		for k := i; k <= j; k++ {
			b.WriteString(toks[k].text)
		}
		s := b.String()
		if len(s) < minJoinedLen || len(s) > MaxTokenLen {
			continue
		}
		r, conf, ok := matchRules(s)
		if !ok {
			continue
		}
		if conf != domain.ConfidenceHigh && (!r.distinctive || firstOK) {
			continue
		}
		return j - i + 1, domain.ParsedTrackingNumber{
			TrackingNumber: s,
			Carrier:        r.carrier,
			Confidence:     conf,
			Raw:            input[toks[i].start:toks[j].end],
		}, true
	}
	return 0, domain.ParsedTrackingNumber{}, false
}

// joined reports whether b follows a after exactly one space or hyphen.
func joined(input string, a, b token) bool {
	if b.start-a.end != 1 {
		return false
	}
	c := input[a.end]
	return c == ' ' || c == '-'
}

// classify runs one token through direct matching, checksum-backed
// windowing, embedded barcode forms, shape-only windowing and finally the
// UNKNOWN fallback. The first stage that produces a result consumes the
// whole token.
func classify(input string, t token) []domain.ParsedTrackingNumber {
	if len(t.text) > MaxTokenLen {
		return nil
	}
	raw := input[t.start:t.end]

	if r, conf, ok := matchRules(t.text); ok {
		return []domain.ParsedTrackingNumber{{
			TrackingNumber: t.text,
			Carrier:        r.carrier,
			Confidence:     conf,
			Raw:            raw,
		}}
	}

	if found := window(t.text, raw, true); len(found) > 0 {
		return found
	}

	for _, f := range embeddedForms {
		if !f.shape.MatchString(t.text) {
			continue
		}
		off := len(t.text) - f.tail
		conf, ok := f.rule.match(t.text[off:])
		if !ok {
			continue
		}
		return []domain.ParsedTrackingNumber{{
			TrackingNumber: t.text[off:],
			Carrier:        f.rule.carrier,
			Confidence:     conf,
			Raw:            raw[off:],
		}}
	}

	if found := window(t.text, raw, false); len(found) > 0 {
		return found
	}

	if plausible(t.text) {
		return []domain.ParsedTrackingNumber{{
			TrackingNumber: t.text,
			Carrier:        domain.CarrierUnknown,
			Confidence:     domain.ConfidenceMedium,
			Raw:            raw,
		}}
	}
	return nil
}

// window splits a run of back-to-back numbers of one fixed-length format,
// as found in manifest lines printed without delimiters. In strict mode a
// rule without a distinctive prefix needs every window to pass its
// checksum; otherwise matching shapes are enough and failing windows come
// back as MEDIUM.
func window(text, raw string, strict bool) []domain.ParsedTrackingNumber {
	for _, r := range rules {
		if r.length == 0 || len(text)%r.length != 0 || len(text)/r.length < 2 {
			continue
		}
		found := make([]domain.ParsedTrackingNumber, 0, len(text)/r.length)
		for off := 0; off < len(text); off += r.length {
			part := text[off : off+r.length]
			conf, ok := r.match(part)
			if !ok || (strict && !r.distinctive && conf != domain.ConfidenceHigh) {
				found = nil
				break
			}
			found = append(found, domain.ParsedTrackingNumber{
				TrackingNumber: part,
				Carrier:        r.carrier,
				Confidence:     conf,
				Raw:            raw[off : off+r.length],
			})
		}
		if len(found) > 0 {
			return found
		}
	}
	return nil
}

// plausible reports whether an unclassified token still looks enough like
// an identifier that an operator should see it.
func plausible(s string) bool {
	if len(s) < minUnknownLen || len(s) > maxUnknownLen {
		return false
	}
	digits := 0
	for i := 0; i < len(s); i++ {
		if isDigit(s[i]) {
			digits++
		}
	}
	return digits*2 >= len(s)
}

func isAlnum(c byte) bool {
	return isDigit(c) || isUpper(c) || (c >= 'a' && c <= 'z')
}
