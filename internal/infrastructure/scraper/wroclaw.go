package scraper

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mkrew_service/internal/domain/model"
)

const (
	WroclawCode = "WROCLAW"
	wroclawURL  = "https://www.rckik.wroclaw.pl"
)

var wroclawBloodTypes = bloodTypeVariants("RHD", "", "RH")

var wroclawAltRules = []statusRule{
	{[]string{"niski", "low"}, model.StatusLow},
	{[]string{"średni", "sredni", "medium"}, model.StatusMedium},
	{[]string{"wysoki", "high"}, model.StatusHigh},
	{[]string{"optymalny", "satisfactory"}, model.StatusSatisfactory},
}

// Номер картинки-контейнера: 1 полный, 4 почти пустой.
var wroclawIconRules = []statusRule{
	{[]string{"pojemnik_1"}, model.StatusHigh},
	{[]string{"pojemnik_2"}, model.StatusSatisfactory},
	{[]string{"pojemnik_3"}, model.StatusMedium},
	{[]string{"pojemnik_4"}, model.StatusLow},
}

var wroclawGroupClasses = map[string]string{
	"blood-group-a":  "A",
	"blood-group-b":  "B",
	"blood-group-ab": "AB",
	"blood-group-o":  "0",
}

// Wroclaw читает RCKiK Wrocław: две секции (RhD+ и RhD-), статус задаётся картинкой.
type Wroclaw struct {
	base
}

func NewWroclaw(opts Options) *Wroclaw {
	return &Wroclaw{base: newBase(WroclawCode, wroclawURL, opts)}
}

func (a *Wroclaw) Scrape(ctx context.Context) ([]model.InventorySnapshot, error) {
	doc, err := a.fetch(ctx)
	if err != nil {
		return nil, err
	}
	observedAt := a.nowFunc()

	sections := []struct {
		selector string
		sign     string
	}{
		{"div.blood-inventory-rhd-plus", "+"},
		{"div.blood-inventory-rhd-minus", "-"},
	}

	found := false
	var out []model.InventorySnapshot
	for _, sec := range sections {
		s := doc.Find(sec.selector)
		if s.Length() == 0 {
			continue
		}
		found = true
		s.Find("div[class*=blood-group]").Each(func(_ int, div *goquery.Selection) {
			class, _ := div.Attr("class")
			group, ok := groupFromClass(class)
			if !ok {
				a.skipRow("unknown blood group class", class)
				return
			}
			bt, ok := wroclawBloodTypes[group+"RHD"+sec.sign]
			if !ok {
				a.skipRow("unknown blood type", group+sec.sign)
				return
			}
			out = append(out, a.snapshot(bt, wroclawStatus(div), observedAt))
		})
	}
	if !found {
		return nil, &model.ParseError{URL: a.url, Reason: "rhd sections not found"}
	}
	return out, nil
}

// groupFromClass сравнивает классы целиком, иначе "blood-group-ab" совпал бы с "a".
func groupFromClass(class string) (string, bool) {
	for _, token := range strings.Fields(class) {
		if g, ok := wroclawGroupClasses[strings.ToLower(token)]; ok {
			return g, true
		}
	}
	return "", false
}

func wroclawStatus(div *goquery.Selection) model.InventoryStatus {
	img := div.Find("img").First()
	if alt, ok := img.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
		if st := matchStatus(alt, wroclawAltRules, 0); st != 0 {
			return st
		}
	}
	if src, ok := img.Attr("src"); ok {
		return matchStatus(src, wroclawIconRules, model.StatusMedium)
	}
	return model.StatusMedium
}
