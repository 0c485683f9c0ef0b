package scraper

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mkrew_service/internal/domain/model"
)

const (
	RzeszowCode = "RZESZOW"
	rzeszowURL  = "https://www.rckk.rzeszow.pl"
)

var rzeszowBloodTypes = bloodTypeVariants("RHD", "", "RH")

var rzeszowStatusRules = []statusRule{
	{[]string{"niski", "low", "critical"}, model.StatusLow},
	{[]string{"sredni", "średni", "medium"}, model.StatusMedium},
	{[]string{"wysoki", "high"}, model.StatusHigh},
	{[]string{"optymalny", "satisfactory", "optimal"}, model.StatusSatisfactory},
}

// "Stan krwi na dzień 08-01-2024"
var pageDatePattern = regexp.MustCompile(`(\d{2})[-.](\d{2})[-.](\d{4})`)

// Rzeszow читает RCKiK Rzeszów: список <li>, статус закодирован в классе элемента.
type Rzeszow struct {
	base
}

func NewRzeszow(opts Options) *Rzeszow {
	return &Rzeszow{base: newBase(RzeszowCode, rzeszowURL, opts)}
}

func (a *Rzeszow) Scrape(ctx context.Context) ([]model.InventorySnapshot, error) {
	doc, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	fetchedAt := a.nowFunc()

	section := doc.Find("div.blood-inventory")
	if section.Length() == 0 {
		return nil, &model.ParseError{URL: a.url, Reason: "blood inventory section not found"}
	}

	observedAt := fetchedAt
	doc.Find("h3").EachWithBreak(func(_ int, h *goquery.Selection) bool {
		if d, ok := parsePageDate(h.Text()); ok {
			observedAt = d
			return false
		}
		return true
	})

	var out []model.InventorySnapshot
	section.Find("ul li").Each(func(_ int, li *goquery.Selection) {
		text := strings.TrimSpace(li.Text())
		bt, ok := a.parseBloodType(text)
		if !ok {
			a.skipRow("unknown blood type", text)
			return
		}
		class, _ := li.Attr("class")
		status := matchStatus(class, rzeszowStatusRules, model.StatusMedium)
		out = append(out, a.snapshot(bt, status, observedAt))
	})
	return out, nil
}

// parseBloodType берёт первое слово ("A", "0", "AB") и резус по наличию "RhD-" в тексте.
func (a *Rzeszow) parseBloodType(text string) (model.BloodType, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}
	group := fields[0]
	rh := "RhD+"
	if strings.Contains(text, "RhD-") {
		rh = "RhD-"
	}
	bt, ok := rzeszowBloodTypes[normalizeKey(group+rh)]
	return bt, ok
}

func parsePageDate(text string) (time.Time, bool) {
	if !strings.Contains(strings.ToLower(text), "stan krwi") {
		return time.Time{}, false
	}
	m := pageDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation("02-01-2006", m[1]+"-"+m[2]+"-"+m[3], model.SourceZone())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
