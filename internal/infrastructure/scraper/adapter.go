package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"mkrew_service/internal/domain/model"
)

const (
	DefaultTimeout   = 10 * time.Second
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Options: общие настройки адаптеров.
type Options struct {
	Timeout time.Duration
	// BaseURLs переопределяет адрес сайта по коду источника (зеркала, тесты).
	BaseURLs     map[string]string
	Logger       zerolog.Logger
	OnRowSkipped func(sourceCode, reason string)
}

func (o Options) siteURL(code, fallback string) string {
	if u, ok := o.BaseURLs[code]; ok && u != "" {
		return u
	}
	return fallback
}

// base содержит общую часть адаптеров: загрузку страницы и учёт пропущенных строк.
type base struct {
	code    string
	url     string
	client  *http.Client
	logger  zerolog.Logger
	onSkip  func(sourceCode, reason string)
	nowFunc func() time.Time
}

func newBase(code, defaultURL string, opts Options) base {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return base{
		code:    code,
		url:     opts.siteURL(code, defaultURL),
		client:  &http.Client{Timeout: timeout},
		logger:  opts.Logger.With().Str("source", code).Logger(),
		onSkip:  opts.OnRowSkipped,
		nowFunc: time.Now,
	}
}

func (b *base) SourceCode() string { return b.code }
func (b *base) SiteURL() string    { return b.url }

func (b *base) fetch(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.url, nil)
	if err != nil {
		return nil, &model.SourceUnavailableError{URL: b.url, Err: err}
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, &model.SourceUnavailableError{URL: b.url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &model.SourceUnavailableError{URL: b.url, StatusCode: resp.StatusCode}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, &model.SourceUnavailableError{URL: b.url, Err: fmt.Errorf("failed to read page: %w", err)}
	}
	return doc, nil
}

func (b *base) skipRow(reason string, text string) {
	b.logger.Warn().Str("row", text).Msg("skipping row: " + reason)
	if b.onSkip != nil {
		b.onSkip(b.code, reason)
	}
}

func (b *base) snapshot(bt model.BloodType, status model.InventoryStatus, observedAt time.Time) model.InventorySnapshot {
	return model.InventorySnapshot{
		SourceCode: b.code,
		BloodType:  bt,
		Status:     status,
		SourceURL:  b.url,
		ObservedAt: observedAt,
	}
}

// bloodTypeVariants строит таблицу написаний группы крови для конкретного сайта:
// для каждой группы (0, A, B, AB) и каждого инфикса ("RHD", "", ...) ключи вида "ARHD+".
func bloodTypeVariants(infixes ...string) map[string]model.BloodType {
	groups := []struct {
		name     string
		pos, neg model.BloodType
	}{
		{"0", model.BloodTypeOPositive, model.BloodTypeONegative},
		{"A", model.BloodTypeAPositive, model.BloodTypeANegative},
		{"B", model.BloodTypeBPositive, model.BloodTypeBNegative},
		{"AB", model.BloodTypeABPositive, model.BloodTypeABNegative},
	}
	table := make(map[string]model.BloodType, len(groups)*len(infixes)*2)
	for _, g := range groups {
		for _, infix := range infixes {
			table[g.name+infix+"+"] = g.pos
			table[g.name+infix+"-"] = g.neg
		}
	}
	return table
}

// normalizeKey: верхний регистр, без пробелов.
func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), "")
}

// statusRule: подстроки, по которым определяется статус; правила проверяются по порядку.
type statusRule struct {
	keywords []string
	status   model.InventoryStatus
}

func matchStatus(text string, rules []statusRule, fallback model.InventoryStatus) model.InventoryStatus {
	text = strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(text, kw) {
				return r.status
			}
		}
	}
	return fallback
}
