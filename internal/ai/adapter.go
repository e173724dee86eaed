package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"mail-sticky-go/internal/config"
)

// Mode reports how a result was produced
type Mode string

const (
	ModeOn       Mode = "ON"
	ModeOff      Mode = "OFF"
	ModeFallback Mode = "FALLBACK"
)

const (
	LabelActionable = "actionable"
	LabelFYI        = "fyi"
	LabelMarketing  = "marketing"
)

const (
	DefaultSummaryMaxLen = 140

	classifyBodyLimit  = 3000
	summarizeBodyLimit = 6000
	defaultCallTimeout = 30 * time.Second
)

var (
	// ErrDisabled is carried by OFF outcomes when AI is switched off in config.
	ErrDisabled = errors.New("AI is disabled in config (ai.enabled=false)")
	// ErrNoAPIKey is carried by OFF outcomes when no API key is configured.
	ErrNoAPIKey = errors.New("OPENAI_API_KEY not set (env var or ai.api_key)")
	// ErrEmptyResponse is returned when the model reply is empty after cleanup.
	ErrEmptyResponse = errors.New("model returned an empty summary")
)

var edgeNonWord = regexp.MustCompile(`^[^\p{L}\p{N}_]+|[^\p{L}\p{N}_]+$`)

// Classification is the result of one Classify call
type Classification struct {
	Label string
	Mode  Mode
	Err   error
}

// Summary is the result of one Summarize call
type Summary struct {
	Text string
	Mode Mode
	Err  error
}

// SelfTestResult describes a summarization round trip on a fixed sample
type SelfTestResult struct {
	Mode        Mode    `json:"mode"`
	Model       string  `json:"model"`
	BaseURL     string  `json:"base_url"`
	Temperature float64 `json:"temperature"`
	Summary     string  `json:"summary"`
	Error       string  `json:"error,omitempty"`
}

// Adapter classifies and summarizes message bodies, falling back to local
// heuristics whenever the provider is missing or fails.
type Adapter struct {
	provider    Provider
	enabled     bool
	model       string
	baseURL     string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	cache       *cache.Cache
}

// NewAdapter creates an adapter backed by an OpenAI-compatible provider when an API
// key is configured. The provider is built even with AI disabled, since
// classification does not depend on the enabled flag.
func NewAdapter(cfg *config.AIConfig) *Adapter {
	var provider Provider
	if cfg.APIKey != "" {
		provider = NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Temperature)
	}
	return NewAdapterWithProvider(cfg, provider)
}

// NewAdapterWithProvider creates an adapter over an explicit provider; nil means unavailable
func NewAdapterWithProvider(cfg *config.AIConfig, provider Provider) *Adapter {
	a := &Adapter{
		provider:    provider,
		enabled:     cfg.Enabled,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		limiter:     rate.NewLimiter(rate.Inf, 1),
	}
	if a.timeout <= 0 {
		a.timeout = defaultCallTimeout
	}
	if cfg.RequestsPerMinute > 0 {
		a.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	if cfg.CacheTTL > 0 {
		a.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return a
}

// Enabled reports whether AI is switched on in config
func (a *Adapter) Enabled() bool {
	return a.enabled
}

// Available reports whether remote summaries will be attempted
func (a *Adapter) Available() bool {
	return a.enabled && a.provider != nil
}

func (a *Adapter) offReason() error {
	if !a.enabled {
		return ErrDisabled
	}
	return ErrNoAPIKey
}

// CanClassify reports whether remote classification will be attempted
func (a *Adapter) CanClassify() bool {
	return a.provider != nil
}

// Classify labels a message for triage. It never fails: any problem yields actionable.
// Only a configured provider is required; ai.enabled gates summaries alone.
func (a *Adapter) Classify(ctx context.Context, body, subject string) Classification {
	if !a.CanClassify() {
		return Classification{Label: LabelActionable, Mode: ModeOff, Err: ErrNoAPIKey}
	}

	key := cacheKey("classify", subject, body)
	if label, ok := a.cached(key); ok {
		return Classification{Label: label, Mode: ModeOn}
	}

	prompt := "Classify this email for triage with ONE WORD only:\n" +
		"actionable = asks me to do something or likely needs a response\n" +
		"fyi        = informational only, no action needed\n" +
		"marketing  = promo/sales/newsletter/offer\n\n" +
		fmt.Sprintf("Subject: %s\n\n%s\n\n", subject, truncateRunes(body, classifyBodyLimit)) +
		"Answer with exactly one label: actionable or fyi or marketing."

	reply, err := a.generate(ctx, prompt, WithTemperature(1))
	if err != nil {
		logrus.WithError(err).Warn("Classification failed, treating message as actionable")
		return Classification{Label: LabelActionable, Mode: ModeFallback, Err: err}
	}

	label := MapLabel(reply)
	a.store(key, label)
	return Classification{Label: label, Mode: ModeOn}
}

// MapLabel reduces a free-form model reply to one of the known labels
func MapLabel(reply string) string {
	reply = strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.Contains(reply, "market"):
		return LabelMarketing
	case strings.Contains(reply, "fyi"):
		return LabelFYI
	default:
		return LabelActionable
	}
}

// Summarize produces one action-oriented sentence of at most maxLen runes
func (a *Adapter) Summarize(ctx context.Context, body, subject string, maxLen int) Summary {
	return a.summarize(ctx, body, subject, maxLen, true)
}

func (a *Adapter) summarize(ctx context.Context, body, subject string, maxLen int, useCache bool) Summary {
	if maxLen <= 0 {
		maxLen = DefaultSummaryMaxLen
	}
	if !a.Available() {
		return Summary{Text: Heuristic(body, maxLen), Mode: ModeOff, Err: a.offReason()}
	}

	key := cacheKey(fmt.Sprintf("summary:%d", maxLen), subject, body)
	if useCache {
		if text, ok := a.cached(key); ok {
			return Summary{Text: text, Mode: ModeOn}
		}
	}

	prompt := fmt.Sprintf("Summarize this email into a single concise action-oriented sentence "+
		"(<= %d characters). No preamble, no quotes, just the sentence.\n\n"+
		"Subject: %s\n\n%s", maxLen, subject, truncateRunes(body, summarizeBodyLimit))

	reply, err := a.generate(ctx, prompt)
	if err != nil {
		logrus.WithError(err).Warn("Summarization failed, using heuristic summary")
		return Summary{Text: Heuristic(body, maxLen), Mode: ModeFallback, Err: err}
	}

	text := CleanSummary(reply, maxLen)
	if text == "" {
		return Summary{Text: Heuristic(body, maxLen), Mode: ModeFallback, Err: ErrEmptyResponse}
	}
	if useCache {
		a.store(key, text)
	}
	return Summary{Text: text, Mode: ModeOn}
}

// CleanSummary strips leading and trailing non-word characters and cuts to maxLen runes
func CleanSummary(reply string, maxLen int) string {
	out := edgeNonWord.ReplaceAllString(strings.TrimSpace(reply), "")
	return strings.TrimSpace(truncateRunes(out, maxLen))
}

// SelfTest summarizes a fixed sample message, bypassing the cache
func (a *Adapter) SelfTest(ctx context.Context) SelfTestResult {
	subject := "Order status and scheduling"
	body := "Hi Peyton,\n" +
		"Please confirm the PO 4421 delivery ETA and update the CNC grind schedule for job 77105. " +
		"Also send the revised drawing to the customer.\n\nThanks!"

	baseURL := a.baseURL
	if baseURL == "" {
		baseURL = "(default)"
	}
	result := SelfTestResult{
		Model:       a.model,
		BaseURL:     baseURL,
		Temperature: a.temperature,
	}

	summary := a.summarize(ctx, body, subject, DefaultSummaryMaxLen, false)
	result.Mode = summary.Mode
	result.Summary = summary.Text
	if summary.Err != nil {
		result.Error = summary.Err.Error()
	}
	return result
}

func (a *Adapter) generate(ctx context.Context, prompt string, opts ...Option) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return a.provider.Generate(ctx, prompt, opts...)
}

func (a *Adapter) cached(key string) (string, bool) {
	if a.cache == nil {
		return "", false
	}
	v, ok := a.cache.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (a *Adapter) store(key, value string) {
	if a.cache == nil {
		return
	}
	a.cache.Set(key, value, cache.DefaultExpiration)
}

func cacheKey(kind, subject, body string) string {
	sum := sha256.Sum256([]byte(subject + "\x00" + body))
	return kind + ":" + hex.EncodeToString(sum[:])
}
