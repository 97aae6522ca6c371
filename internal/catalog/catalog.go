// Package catalog разбирает публичное описание товара в типизированное
// определение каталога. Разбор выполняется один раз на границе системы,
// дальше все потребители работают только с Definition.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidCatalog возвращается, когда описание товара отсутствует,
// не является структурой или содержит некорректные цены.
var ErrInvalidCatalog = errors.New("invalid catalog data")

// Kind задаёт вариант каталога.
type Kind string

const (
	KindDownloadable Kind = "downloadable"
	KindOffline      Kind = "offline"
	KindDirect       Kind = "direct"
	KindAllInOne     Kind = "allinone"
)

// Definition — типизированное определение каталога, полученное из
// публичного описания товара. Неизменяемо после Resolve.
type Definition struct {
	Kind  Kind
	Title string

	// Prices сопоставляет идентификатору позиции её цену.
	// Пусто для варианта direct и для выключенных компонентов allinone.
	Prices map[string]decimal.Decimal

	// DefaultAmount — необязательная сумма по умолчанию варианта direct.
	DefaultAmount *decimal.Decimal

	// DonationEnabled сообщает, принимает ли каталог произвольные суммы:
	// всегда true для direct, для allinone зависит от компонента donation.
	DonationEnabled bool
}

type pricedItem struct {
	ID    string          `json:"id"`
	Price json.RawMessage `json:"price"`
}

type component struct {
	Enabled bool         `json:"enabled"`
	Files   []pricedItem `json:"files"`
	Items   []pricedItem `json:"items"`
}

type rawPayload struct {
	Type              string       `json:"type"`
	Title             string       `json:"title"`
	DefaultAmount     *json.Number `json:"defaultAmount"`
	DownloadableFiles []pricedItem `json:"downloadableFiles"`
	OfflineItems      []pricedItem `json:"offlineItems"`
	Components        struct {
		Downloadable component `json:"downloadable"`
		Offline      component `json:"offline"`
		Donation     component `json:"donation"`
	} `json:"components"`
}

// Resolve разбирает сырое описание товара и строит Definition.
// Любая некорректность данных приводит к ErrInvalidCatalog.
func Resolve(raw json.RawMessage) (*Definition, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidCatalog)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload is not an object", ErrInvalidCatalog)
	}

	var p rawPayload
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	switch Kind(p.Type) {
	case KindDownloadable:
		prices, err := buildPriceMap(p.DownloadableFiles)
		if err != nil {
			return nil, err
		}
		return &Definition{Kind: KindDownloadable, Title: p.Title, Prices: prices}, nil

	case KindOffline:
		prices, err := buildPriceMap(p.OfflineItems)
		if err != nil {
			return nil, err
		}
		return &Definition{Kind: KindOffline, Title: p.Title, Prices: prices}, nil

	case KindDirect:
		def := &Definition{
			Kind:            KindDirect,
			Title:           p.Title,
			Prices:          map[string]decimal.Decimal{},
			DonationEnabled: true,
		}
		if p.DefaultAmount != nil {
			amount, err := decimal.NewFromString(p.DefaultAmount.String())
			if err != nil {
				return nil, fmt.Errorf("%w: default amount: %v", ErrInvalidCatalog, err)
			}
			def.DefaultAmount = &amount
		}
		return def, nil

	case KindAllInOne:
		prices := map[string]decimal.Decimal{}
		// Выключенный компонент не добавляет позиций с ценами.
		if p.Components.Downloadable.Enabled {
			if err := addPrices(prices, p.Components.Downloadable.Files); err != nil {
				return nil, err
			}
		}
		if p.Components.Offline.Enabled {
			if err := addPrices(prices, p.Components.Offline.Items); err != nil {
				return nil, err
			}
		}
		return &Definition{
			Kind:            KindAllInOne,
			Title:           p.Title,
			Prices:          prices,
			DonationEnabled: p.Components.Donation.Enabled,
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCatalog, p.Type)
}

func buildPriceMap(items []pricedItem) (map[string]decimal.Decimal, error) {
	prices := map[string]decimal.Decimal{}
	if err := addPrices(prices, items); err != nil {
		return nil, err
	}
	return prices, nil
}

func addPrices(prices map[string]decimal.Decimal, items []pricedItem) error {
	for _, it := range items {
		price, err := parsePrice(it.Price)
		if err != nil {
			return fmt.Errorf("%w: item %q: %v", ErrInvalidCatalog, it.ID, err)
		}
		prices[it.ID] = price
	}
	return nil
}

// parsePrice принимает цену и числом, и строкой: исторически клиенты
// присылали оба варианта.
func parsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, errors.New("price is missing")
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return decimal.Zero, errors.New("price is not numeric")
	}
	return decimal.NewFromString(n.String())
}
