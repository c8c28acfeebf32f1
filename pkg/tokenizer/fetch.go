package tokenizer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rhuss/lmscore/pkg/debug"
)

// Known tokenizer sources.
const (
	GPT2URL = "https://huggingface.co/openai-community/gpt2/resolve/main/tokenizer.json"

	PileURL    = "http://eaidata.bmk.sh/data/pile_tokenizer.json"
	PileSHA256 = "d27f071586925d23ef1c4acdee28fb8bf5d99c4a9d638b4e3b08812e3eae6ee7"
)

// Fetch makes sure dest holds the file at url. An existing file is reused
// when it matches checksum (hex SHA-256); an empty checksum accepts any
// existing file. Downloads go to a temporary file next to dest and are
// renamed into place only after the checksum verifies.
func Fetch(ctx context.Context, client *http.Client, url, dest, checksum string) error {
	checksum = strings.ToLower(strings.TrimSpace(checksum))

	if _, err := os.Stat(dest); err == nil {
		if checksum == "" {
			return nil
		}
		sum, err := fileSHA256(dest)
		if err != nil {
			return err
		}
		if sum == checksum {
			debug.Log("tokenizer", "tokenizer already present", "path", dest)
			return nil
		}
		debug.Log("tokenizer", "checksum mismatch, downloading again", "path", dest, "got", sum)
	}

	if client == nil {
		client = http.DefaultClient
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create tokenizer directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	debug.Log("tokenizer", "downloading tokenizer", "url", url, "path", dest)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".tokenizer-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if sum := hex.EncodeToString(h.Sum(nil)); checksum != "" && sum != checksum {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", url, sum, checksum)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("install tokenizer: %w", err)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DefaultCacheDir returns the directory downloaded tokenizers are stored in.
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "lmscore")
	}
	return filepath.Join(os.TempDir(), "lmscore")
}
