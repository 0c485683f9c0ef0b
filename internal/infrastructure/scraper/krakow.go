package scraper

import (
	"context"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mkrew_service/internal/domain/model"
)

const (
	KrakowCode = "KRAKOW"
	krakowURL  = "https://rckik.krakow.pl"
)

var krakowBloodTypes = bloodTypeVariants("", "RH")

var krakowStatusRules = []statusRule{
	{[]string{"niski", "low"}, model.StatusLow},
	{[]string{"średni", "medium"}, model.StatusMedium},
	{[]string{"wysoki", "high"}, model.StatusHigh},
}

// Krakow читает RCKiK Kraków: таблица, первая ячейка группа крови, вторая статус текстом,
// необязательная третья ячейка: количество.
type Krakow struct {
	base
}

func NewKrakow(opts Options) *Krakow {
	return &Krakow{base: newBase(KrakowCode, krakowURL, opts)}
}

func (a *Krakow) Scrape(ctx context.Context) ([]model.InventorySnapshot, error) {
	doc, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	observedAt := a.nowFunc()

	table := doc.Find("table.blood-inventory")
	if table.Length() == 0 {
		return nil, &model.ParseError{URL: a.url, Reason: "blood inventory table not found"}
	}

	var out []model.InventorySnapshot
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 2 {
			// заголовок
			return
		}
		typeText := strings.TrimSpace(cells.Eq(0).Text())
		bt, ok := krakowBloodTypes[normalizeKey(typeText)]
		if !ok {
			a.skipRow("unknown blood type", typeText)
			return
		}
		status := matchStatus(cells.Eq(1).Text(), krakowStatusRules, model.StatusSatisfactory)

		snap := a.snapshot(bt, status, observedAt)
		if cells.Length() > 2 {
			if q, err := strconv.Atoi(strings.TrimSpace(cells.Eq(2).Text())); err == nil {
				snap.QuantityLevel = &q
			}
		}
		out = append(out, snap)
	})
	return out, nil
}
