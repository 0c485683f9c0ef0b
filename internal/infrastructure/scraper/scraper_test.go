package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mkrew_service/internal/domain/model"
)

const rzeszowPage = `<html><body>
<h3>Aktualności</h3>
<h3>Stan krwi na dzień 08-01-2024</h3>
<div class="blood-inventory"><ul>
  <li class="status niski">0 RhD+</li>
  <li class="status sredni">0 RhD-</li>
  <li class="status wysoki">A RhD+</li>
  <li class="status optymalny">AB RhD-</li>
  <li class="status unknown">B RhD+</li>
  <li class="status niski">X RhD+</li>
</ul></div>
</body></html>`

const krakowPage = `<html><body>
<table class="blood-inventory">
  <tr><th>Grupa</th><th>Stan</th></tr>
  <tr><td>0 Rh+</td><td>Niski</td><td>12</td></tr>
  <tr><td>A-</td><td>średni</td></tr>
  <tr><td>AB Rh-</td><td>wysoki</td><td>n/a</td></tr>
  <tr><td>B+</td><td>brak danych</td></tr>
  <tr><td>??</td><td>niski</td></tr>
  <tr><td>tylko jedna</td></tr>
</table>
</body></html>`

const wroclawPage = `<html><body>
<div class="blood-inventory-rhd-plus">
  <div class="blood-group blood-group-ab"><img alt="Niski" src="/img/pojemnik_4.png"></div>
  <div class="blood-group blood-group-a"><img alt="" src="/img/pojemnik_1.png"></div>
  <div class="blood-group blood-group-o"><img src="/img/other.png"></div>
</div>
<div class="blood-inventory-rhd-minus">
  <div class="blood-group blood-group-b"><img alt="Optymalny" src="/img/pojemnik_3.png"></div>
  <div class="blood-group blood-group-x"><img alt="Niski"></div>
</div>
</body></html>`

func serve(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type skipCounter struct{ reasons []string }

func (s *skipCounter) record(code, reason string) { s.reasons = append(s.reasons, code+":"+reason) }

func testOptions(code, url string, skips *skipCounter) Options {
	return Options{
		Timeout:      2 * time.Second,
		BaseURLs:     map[string]string{code: url},
		Logger:       zerolog.Nop(),
		OnRowSkipped: skips.record,
	}
}

func byType(snaps []model.InventorySnapshot) map[model.BloodType]model.InventorySnapshot {
	m := make(map[model.BloodType]model.InventorySnapshot, len(snaps))
	for _, s := range snaps {
		m[s.BloodType] = s
	}
	return m
}

func TestRzeszowScrape(t *testing.T) {
	srv := serve(t, rzeszowPage)
	skips := &skipCounter{}
	a := NewRzeszow(testOptions(RzeszowCode, srv.URL, skips))

	snaps, err := a.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 5)

	got := byType(snaps)
	assert.Equal(t, model.StatusLow, got[model.BloodTypeOPositive].Status)
	assert.Equal(t, model.StatusMedium, got[model.BloodTypeONegative].Status)
	assert.Equal(t, model.StatusHigh, got[model.BloodTypeAPositive].Status)
	assert.Equal(t, model.StatusSatisfactory, got[model.BloodTypeABNegative].Status)
	// неизвестный класс: значение по умолчанию MEDIUM
	assert.Equal(t, model.StatusMedium, got[model.BloodTypeBPositive].Status)

	observed := got[model.BloodTypeOPositive].ObservedAt
	assert.Equal(t, 2024, observed.Year())
	assert.Equal(t, time.January, observed.Month())
	assert.Equal(t, 8, observed.Day())
	assert.Equal(t, model.SourceZone(), observed.Location())
	assert.Equal(t, RzeszowCode, got[model.BloodTypeOPositive].SourceCode)
	assert.Equal(t, srv.URL, got[model.BloodTypeOPositive].SourceURL)

	assert.Equal(t, []string{"RZESZOW:unknown blood type"}, skips.reasons)
}

func TestKrakowScrape(t *testing.T) {
	srv := serve(t, krakowPage)
	skips := &skipCounter{}
	a := NewKrakow(testOptions(KrakowCode, srv.URL, skips))

	before := time.Now()
	snaps, err := a.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 4)

	got := byType(snaps)
	require.NotNil(t, got[model.BloodTypeOPositive].QuantityLevel)
	assert.Equal(t, 12, *got[model.BloodTypeOPositive].QuantityLevel)
	assert.Equal(t, model.StatusLow, got[model.BloodTypeOPositive].Status)
	assert.Equal(t, model.StatusMedium, got[model.BloodTypeANegative].Status)
	assert.Equal(t, model.StatusHigh, got[model.BloodTypeABNegative].Status)
	assert.Nil(t, got[model.BloodTypeABNegative].QuantityLevel)
	// неизвестный текст: SATISFACTORY
	assert.Equal(t, model.StatusSatisfactory, got[model.BloodTypeBPositive].Status)
	assert.False(t, got[model.BloodTypeBPositive].ObservedAt.Before(before))

	assert.Len(t, skips.reasons, 1)
}

func TestWroclawScrape(t *testing.T) {
	srv := serve(t, wroclawPage)
	skips := &skipCounter{}
	a := NewWroclaw(testOptions(WroclawCode, srv.URL, skips))

	snaps, err := a.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 4)

	got := byType(snaps)
	// blood-group-ab не должен читаться как A
	assert.Equal(t, model.StatusLow, got[model.BloodTypeABPositive].Status)
	assert.Equal(t, model.StatusHigh, got[model.BloodTypeAPositive].Status)
	assert.Equal(t, model.StatusMedium, got[model.BloodTypeOPositive].Status)
	assert.Equal(t, model.StatusSatisfactory, got[model.BloodTypeBNegative].Status)

	assert.Equal(t, []string{"WROCLAW:unknown blood group class"}, skips.reasons)
}

func TestScrapeStructureMissing(t *testing.T) {
	srv := serve(t, `<html><body><p>maintenance</p></body></html>`)
	skips := &skipCounter{}

	for _, a := range []model.SourceAdapter{
		NewRzeszow(testOptions(RzeszowCode, srv.URL, skips)),
		NewKrakow(testOptions(KrakowCode, srv.URL, skips)),
		NewWroclaw(testOptions(WroclawCode, srv.URL, skips)),
	} {
		_, err := a.Scrape(context.Background())
		var perr *model.ParseError
		assert.True(t, errors.As(err, &perr), a.SourceCode())
	}
}

func TestScrapeSourceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewKrakow(testOptions(KrakowCode, srv.URL, &skipCounter{}))
	_, err := a.Scrape(context.Background())
	var uerr *model.SourceUnavailableError
	require.True(t, errors.As(err, &uerr))
	assert.Equal(t, http.StatusBadGateway, uerr.StatusCode)

	closed := httptest.NewServer(http.NotFoundHandler())
	url := closed.URL
	closed.Close()
	a = NewKrakow(testOptions(KrakowCode, url, &skipCounter{}))
	_, err = a.Scrape(context.Background())
	require.True(t, errors.As(err, &uerr))
	assert.Zero(t, uerr.StatusCode)
}

func TestScrapeTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	opts := testOptions(WroclawCode, srv.URL, &skipCounter{})
	opts.Timeout = 50 * time.Millisecond
	_, err := NewWroclaw(opts).Scrape(context.Background())
	var uerr *model.SourceUnavailableError
	assert.True(t, errors.As(err, &uerr))
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(DefaultAdapters(Options{Logger: zerolog.Nop()})...)
	require.NoError(t, err)

	assert.Equal(t, []string{KrakowCode, RzeszowCode, WroclawCode}, reg.Codes())

	a, ok := reg.Lookup(WroclawCode)
	require.True(t, ok)
	assert.Equal(t, "https://www.rckik.wroclaw.pl", a.SiteURL())

	_, ok = reg.Lookup("GDANSK")
	assert.False(t, ok)

	_, err = NewRegistry(NewKrakow(Options{}), NewKrakow(Options{}))
	assert.Error(t, err)
}
