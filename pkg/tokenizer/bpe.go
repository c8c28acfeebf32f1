package tokenizer

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

type pair struct {
	a, b string
}

type textPart struct {
	text    string
	isAdded bool
}

// gpt2Pattern is the GPT-2 pre-tokenizer regex without its trailing
// `\s+(?!\S)` branch, which preTokenize emulates.
var gpt2Pattern = regexp.MustCompile(`^(?:'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+)`)

// preTokenize splits text into words the way the GPT-2 regex does. A run of
// whitespace followed by a non-space gives up its last character so that
// the following word carries its leading space.
func preTokenize(text string) []string {
	var words []string
	for pos := 0; pos < len(text); {
		rest := text[pos:]
		n := 0
		if loc := gpt2Pattern.FindStringIndex(rest); loc != nil {
			n = loc[1]
		}
		if n == 0 {
			_, n = utf8.DecodeRuneInString(rest)
		}

		m := rest[:n]
		if n < len(rest) && isSpace(m) && utf8.RuneCountInString(m) > 1 {
			_, last := utf8.DecodeLastRuneInString(m)
			m = m[:len(m)-last]
		}

		words = append(words, m)
		pos += len(m)
	}
	return words
}

// isSpace reports whether s holds only characters matched by RE2's \s.
func isSpace(s string) bool {
	return s != "" && strings.Trim(s, " \t\n\f\r") == ""
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func mergePair(word []string, p pair) []string {
	out := make([]string, 0, len(word))
	for i := 0; i < len(word); i++ {
		if i < len(word)-1 && word[i] == p.a && word[i+1] == p.b {
			out = append(out, word[i]+word[i+1])
			i++
			continue
		}
		out = append(out, word[i])
	}
	return out
}

func isSpecialToken(s string) bool {
	return len(s) >= 4 && strings.HasPrefix(s, "<|") && strings.HasSuffix(s, "|>")
}

// sortAdded deduplicates and orders added tokens longest first so that
// splitAdded prefers the longest match.
func sortAdded(added []string) []string {
	seen := make(map[string]bool, len(added))
	out := added[:0]
	for _, s := range added {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// splitAdded cuts text at the leftmost-longest occurrences of the added
// tokens, which must be sorted longest first.
func splitAdded(text string, added []string) []textPart {
	if len(added) == 0 {
		return []textPart{{text: text}}
	}
	var parts []textPart
	start := 0
	for i := 0; i < len(text); {
		match := ""
		for _, tok := range added {
			if strings.HasPrefix(text[i:], tok) {
				match = tok
				break
			}
		}
		if match == "" {
			i++
			continue
		}
		if i > start {
			parts = append(parts, textPart{text: text[start:i]})
		}
		parts = append(parts, textPart{text: match, isAdded: true})
		i += len(match)
		start = i
	}
	if start < len(text) {
		parts = append(parts, textPart{text: text[start:]})
	}
	return parts
}

// bytesToUnicode maps every byte to a printable rune so that BPE operates
// on strings without whitespace or control characters.
func bytesToUnicode() ([256]string, map[rune]byte) {
	var enc [256]string
	dec := make(map[rune]byte, 256)

	printable := func(b int) bool {
		return (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
	}

	n := 0
	for b := 0; b < 256; b++ {
		r := rune(b)
		if !printable(b) {
			r = rune(256 + n)
			n++
		}
		enc[b] = string(r)
		dec[r] = byte(b)
	}
	return enc, dec
}
