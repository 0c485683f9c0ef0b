package model

import "context"

// SourceAdapter снимает текущие остатки с сайта одного центра крови.
type SourceAdapter interface {
	SourceCode() string
	SiteURL() string
	Scrape(ctx context.Context) ([]InventorySnapshot, error)
}
