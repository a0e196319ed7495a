package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Melokeo/Timetable4Inky/internal/config"
	appLog "github.com/Melokeo/Timetable4Inky/internal/log"
)

const abbrevSystemPrompt = "You are an abbreviation expert. When given a timetable phrase, pick the two to three " +
	"most representative words and abbreviate them: keep existing all-caps acronyms unchanged, keep the first " +
	"three letters of short words, otherwise strip vowels and take three to four consonants uppercased. " +
	"Return only the abbreviated words separated by spaces, one line per input phrase, no extra text."

// Abbreviator shortens over-long task titles via an OpenAI-compatible
// chat endpoint. Results are cached on disk; any failure leaves callers
// to fall back to plain truncation.
type Abbreviator struct {
	cfg       config.AbbrevConfig
	client    *http.Client
	cachePath string
}

// NewAbbreviator returns nil when the provider is not configured.
func NewAbbreviator(cfg config.AbbrevConfig, cacheDir string) *Abbreviator {
	if cfg.Endpoint == "" {
		return nil
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4.1"
	}
	return &Abbreviator{
		cfg:       cfg,
		client:    &http.Client{Timeout: 20 * time.Second},
		cachePath: filepath.Join(cacheDir, "abbrev-cache.json"),
	}
}

// Abbreviate maps each title to its short form. Cached entries are
// served without a network call; only missing titles are sent upstream.
// On upstream failure the cached subset is still returned with the error.
func (a *Abbreviator) Abbreviate(ctx context.Context, titles []string) (map[string]string, error) {
	cache := a.loadCache()
	out := make(map[string]string, len(titles))

	var missing []string
	for _, t := range titles {
		if short, ok := cache[t]; ok {
			out[t] = short
		} else {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := a.request(ctx, missing)
	if err != nil {
		return out, err
	}
	for title, short := range fresh {
		out[title] = short
		cache[title] = short
	}
	a.saveCache(cache)
	return out, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (a *Abbreviator) request(ctx context.Context, titles []string) (map[string]string, error) {
	var prompt strings.Builder
	prompt.WriteString("For each of the following phrases, return only the abbreviation as per the rules:\n\n")
	for i, t := range titles {
		fmt.Fprintf(&prompt, "%d. %s\n", i+1, t)
	}

	body, err := json.Marshal(chatRequest{
		Model: a.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: abbrevSystemPrompt},
			{Role: "user", Content: prompt.String()},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("abbrev: upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, err
	}
	if len(cr.Choices) == 0 {
		return nil, errors.New("abbrev: empty response")
	}

	lines := strings.Split(strings.TrimSpace(cr.Choices[0].Message.Content), "\n")
	if len(lines) != len(titles) {
		return nil, fmt.Errorf("abbrev: got %d lines for %d titles", len(lines), len(titles))
	}

	out := make(map[string]string, len(titles))
	for i, title := range titles {
		short := strings.TrimSpace(lines[i])
		// Tolerate "1. XYZ" style numbering in responses.
		if cut := strings.Index(short, ". "); cut > 0 && cut < 4 {
			short = short[cut+2:]
		}
		if short != "" {
			out[title] = short
		}
	}
	return out, nil
}

func (a *Abbreviator) loadCache() map[string]string {
	cache := make(map[string]string)
	data, err := os.ReadFile(a.cachePath)
	if err != nil {
		return cache
	}
	_ = json.Unmarshal(data, &cache)
	return cache
}

func (a *Abbreviator) saveCache(cache map[string]string) {
	data, err := json.Marshal(cache)
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.cachePath), 0o700); err != nil {
		appLog.Error("abbrev cache dir create failed", err)
		return
	}
	if err := os.WriteFile(a.cachePath, data, 0o600); err != nil {
		appLog.Error("abbrev cache save failed", err)
	}
}

// Truncate is the degraded path when no abbreviation is available.
func Truncate(s string, max int) string {
	if max <= 0 || len([]rune(s)) <= max {
		return s
	}
	r := []rune(s)
	if max == 1 {
		return "…"
	}
	return string(r[:max-1]) + "…"
}
