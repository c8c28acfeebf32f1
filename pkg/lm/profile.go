package lm

import (
	"fmt"

	"github.com/rhuss/lmscore/pkg/tokenizer"
)

// Profile holds the fixed limits and defaults of one model adapter.
type Profile struct {
	Name string

	// MaxLength is the longest token sequence the model accepts.
	MaxLength int

	// MaxGenToks is the number of tokens generated per request.
	MaxGenToks int

	// PassStrings sends scoring prompts as decoded text instead of token ids.
	PassStrings bool

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string

	// Provider is the provider type used unless configured otherwise.
	Provider string

	// TokenizerURL and TokenizerSHA256 locate the tokenizer.json to use. An
	// empty checksum skips verification.
	TokenizerURL    string
	TokenizerSHA256 string

	// TokenizerCheck, when set, is a known encoding the loaded tokenizer
	// must reproduce.
	TokenizerCheck *TokenizerCheck
}

// TokenizerCheck pairs a text with its expected token ids.
type TokenizerCheck struct {
	Text string
	IDs  []int
}

// PileEngine is the GooseAI engine that needs the Pile tokenizer.
const PileEngine = "gpt-neo-20b"

var gpt2Check = &TokenizerCheck{Text: "hello\n\nhello", IDs: []int{31373, 198, 198, 31373}}

// GPT3 returns the profile for OpenAI engines. The API accepts up to 2049
// tokens, the first of which is never scored.
func GPT3() Profile {
	return Profile{
		Name:           "gpt3",
		MaxLength:      2048,
		MaxGenToks:     256,
		APIKeyEnv:      "OPENAI_API_SECRET_KEY",
		Provider:       "openai",
		TokenizerURL:   tokenizer.GPT2URL,
		TokenizerCheck: gpt2Check,
	}
}

// GooseAI returns the profile for GooseAI engines. The Pile tokenizer is
// used for gpt-neo-20b or when forcePile is set.
func GooseAI(engine string, forcePile bool) Profile {
	p := Profile{
		Name:           "gooseai",
		MaxLength:      2022,
		MaxGenToks:     64,
		PassStrings:    true,
		APIKeyEnv:      "GOOSEAI_API_SECRET_KEY",
		Provider:       "gooseai",
		TokenizerURL:   tokenizer.GPT2URL,
		TokenizerCheck: gpt2Check,
	}
	if engine == PileEngine || forcePile {
		p.TokenizerURL = tokenizer.PileURL
		p.TokenizerSHA256 = tokenizer.PileSHA256
		p.TokenizerCheck = nil
	}
	return p
}

// LookupProfile returns the named profile.
func LookupProfile(name, engine string, forcePile bool) (Profile, error) {
	switch name {
	case "gpt3", "openai":
		return GPT3(), nil
	case "gooseai":
		return GooseAI(engine, forcePile), nil
	default:
		return Profile{}, fmt.Errorf("unknown model adapter %q (valid: gpt3, gooseai)", name)
	}
}
