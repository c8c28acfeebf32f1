package tokenizer

import (
	"fmt"
	"os"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"golang.org/x/text/unicode/norm"

	"github.com/rhuss/lmscore/pkg/debug"
)

// EndOfText is the end-of-text marker shared by the GPT-2 and Pile vocabularies.
const EndOfText = "<|endoftext|>"

// Tokenizer is a byte-level BPE tokenizer. It is safe for concurrent use.
type Tokenizer struct {
	encoder     map[string]int
	decoder     []string
	bpeRanks    map[pair]int
	byteEncoder [256]string
	byteDecoder map[rune]byte
	added       []string
	addedIDs    map[int]bool
	normalize   func(string) string
	eotID       int

	mu    sync.Mutex
	cache map[string][]string
}

type tokenizerJSON struct {
	Normalizer *normalizerJSON `json:"normalizer"`
	Model      struct {
		Type   string         `json:"type"`
		Vocab  map[string]int `json:"vocab"`
		Merges []any          `json:"merges"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

// Load reads a tokenizer.json file.
func Load(path string) (*Tokenizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tokenizer: %w", err)
	}
	tok, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer %s: %w", path, err)
	}
	debug.Log("tokenizer", "tokenizer loaded", "path", path, "vocab", tok.VocabSize())
	return tok, nil
}

// LoadBytes parses the contents of a tokenizer.json file.
func LoadBytes(data []byte) (*Tokenizer, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer json: %w", err)
	}
	if !strings.EqualFold(tj.Model.Type, "BPE") {
		return nil, fmt.Errorf("unsupported tokenizer model: %q", tj.Model.Type)
	}
	if len(tj.Model.Vocab) == 0 {
		return nil, fmt.Errorf("empty vocabulary")
	}

	encoder := make(map[string]int, len(tj.Model.Vocab)+len(tj.AddedTokens))
	maxID := -1
	for tok, id := range tj.Model.Vocab {
		encoder[tok] = id
		maxID = max(maxID, id)
	}
	for _, at := range tj.AddedTokens {
		encoder[at.Content] = at.ID
		maxID = max(maxID, at.ID)
	}

	decoder := make([]string, maxID+1)
	for tok, id := range encoder {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d for %q", id, tok)
		}
		decoder[id] = tok
	}

	ranks, err := parseMerges(tj.Model.Merges)
	if err != nil {
		return nil, err
	}

	normalize, err := buildNormalizer(tj.Normalizer)
	if err != nil {
		return nil, err
	}

	// Added tokens, special or not, are matched before pre-tokenization.
	added := make([]string, 0, len(tj.AddedTokens))
	addedIDs := make(map[int]bool, len(tj.AddedTokens))
	for _, at := range tj.AddedTokens {
		added = append(added, at.Content)
		addedIDs[at.ID] = true
	}
	for tok, id := range tj.Model.Vocab {
		if isSpecialToken(tok) {
			added = append(added, tok)
			addedIDs[id] = true
		}
	}

	eot, ok := encoder[EndOfText]
	if !ok {
		return nil, fmt.Errorf("vocabulary has no %s token", EndOfText)
	}

	t := &Tokenizer{
		encoder:   encoder,
		decoder:   decoder,
		bpeRanks:  ranks,
		added:     sortAdded(added),
		addedIDs:  addedIDs,
		normalize: normalize,
		eotID:     eot,
		cache:     make(map[string][]string),
	}
	t.byteEncoder, t.byteDecoder = bytesToUnicode()
	return t, nil
}

func parseMerges(raw []any) (map[pair]int, error) {
	ranks := make(map[pair]int, len(raw))
	rank := 0
	for i, m := range raw {
		var a, b string
		switch v := m.(type) {
		case string:
			parts := strings.Split(v, " ")
			if len(parts) != 2 {
				return nil, fmt.Errorf("merge %d: malformed rule %q", i, v)
			}
			a, b = parts[0], parts[1]
		case []any:
			if len(v) != 2 {
				return nil, fmt.Errorf("merge %d: expected a pair", i)
			}
			var aok, bok bool
			a, aok = v[0].(string)
			b, bok = v[1].(string)
			if !aok || !bok {
				return nil, fmt.Errorf("merge %d: expected a pair of strings", i)
			}
		default:
			return nil, fmt.Errorf("merge %d: unexpected type %T", i, m)
		}
		p := pair{a: a, b: b}
		if _, ok := ranks[p]; !ok {
			ranks[p] = rank
			rank++
		}
	}
	return ranks, nil
}

// Encode converts text to token ids. The text is normalized first when the
// tokenizer declares a normalizer, then added tokens are split out with
// leftmost-longest matching and the remaining text goes through BPE.
func (t *Tokenizer) Encode(text string) ([]int, error) {
	if t.normalize != nil {
		text = t.normalize(text)
	}
	var ids []int
	for _, part := range splitAdded(text, t.added) {
		if part.isAdded {
			ids = append(ids, t.encoder[part.text])
			continue
		}
		for _, word := range preTokenize(part.text) {
			for _, piece := range t.bpe(t.byteEncode(word)) {
				id, ok := t.encoder[piece]
				if !ok {
					return nil, fmt.Errorf("token %q not in vocabulary", piece)
				}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Decode converts token ids back to text.
func (t *Tokenizer) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.decoder) || t.decoder[id] == "" {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		tok := t.decoder[id]
		if t.addedIDs[id] {
			b = append(b, tok...)
			continue
		}
		for _, r := range tok {
			if by, ok := t.byteDecoder[r]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

// EOTTokenID returns the id of the end-of-text token.
func (t *Tokenizer) EOTTokenID() int { return t.eotID }

// VocabSize returns the number of token ids, including added tokens.
func (t *Tokenizer) VocabSize() int { return len(t.decoder) }

func (t *Tokenizer) byteEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		b.WriteString(t.byteEncoder[s[i]])
	}
	return b.String()
}

func (t *Tokenizer) bpe(token string) []string {
	t.mu.Lock()
	cached, ok := t.cache[token]
	t.mu.Unlock()
	if ok {
		return cached
	}

	word := splitRunes(token)
	for len(word) > 1 {
		best, found := pair{}, false
		bestRank := int(^uint(0) >> 1)
		for i := 0; i < len(word)-1; i++ {
			p := pair{a: word[i], b: word[i+1]}
			if rank, ok := t.bpeRanks[p]; ok && rank < bestRank {
				best, bestRank, found = p, rank, true
			}
		}
		if !found {
			break
		}
		word = mergePair(word, best)
	}

	t.mu.Lock()
	t.cache[token] = word
	t.mu.Unlock()
	return word
}

type normalizerJSON struct {
	Type        string           `json:"type"`
	Normalizers []normalizerJSON `json:"normalizers"`
}

// buildNormalizer returns the text normalization a tokenizer.json declares,
// or nil when it declares none.
func buildNormalizer(n *normalizerJSON) (func(string) string, error) {
	if n == nil {
		return nil, nil
	}
	switch n.Type {
	case "NFC":
		return norm.NFC.String, nil
	case "NFD":
		return norm.NFD.String, nil
	case "NFKC":
		return norm.NFKC.String, nil
	case "NFKD":
		return norm.NFKD.String, nil
	case "Lowercase":
		return strings.ToLower, nil
	case "Sequence":
		var steps []func(string) string
		for i := range n.Normalizers {
			f, err := buildNormalizer(&n.Normalizers[i])
			if err != nil {
				return nil, err
			}
			if f != nil {
				steps = append(steps, f)
			}
		}
		if len(steps) == 0 {
			return nil, nil
		}
		return func(s string) string {
			for _, f := range steps {
				s = f(s)
			}
			return s
		}, nil
	default:
		return nil, fmt.Errorf("unsupported normalizer %q", n.Type)
	}
}
