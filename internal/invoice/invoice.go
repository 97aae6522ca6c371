// Package invoice содержит чистую логику расчёта стоимости покупки.
package invoice

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/searchable-system/internal/catalog"
	"github.com/mmeshcher/searchable-system/internal/model"
)

// Selection — одна позиция, выбранная покупателем. Либо ссылка на позицию
// каталога по ID, либо произвольная сумма с Type = "direct".
type Selection struct {
	ID     string           `json:"id,omitempty"`
	Type   string           `json:"type,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Count  *int64           `json:"count,omitempty"`
}

const selectionTypeDirect = "direct"

// Result — итог расчёта инвойса.
type Result struct {
	AmountUSD      decimal.Decimal
	TotalItemCount int64
	Description    string
	Currency       model.Currency
}

const (
	defaultDirectTitle = "Direct Payment Item"
	defaultItemTitle   = "Item"
)

// Calc вычисляет сумму, количество позиций и описание покупки по
// определению каталога и набору выбранных позиций. Функция чистая и
// детерминированная: одинаковые входы дают одинаковый результат.
//
// Сумма накапливается без округления и округляется до двух знаков ровно
// один раз в конце. Используется округление half-away-from-zero —
// поведение Round из shopspring/decimal (1.999 * 3 -> 6.00).
//
// Любая некорректность входных данных возвращается как
// catalog.ErrInvalidCatalog: наружу из этой границы не выходят
// произвольные низкоуровневые ошибки.
func Calc(def *catalog.Definition, selections []Selection) (*Result, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: nil definition", catalog.ErrInvalidCatalog)
	}

	if def.Kind == catalog.KindDirect {
		return calcDirect(def, selections)
	}
	return calcPriced(def, selections)
}

// calcDirect учитывает только позиции с типом direct и непустой суммой,
// остальные молча игнорируются.
func calcDirect(def *catalog.Definition, selections []Selection) (*Result, error) {
	total := decimal.Zero
	var count int64

	for _, sel := range selections {
		if sel.Type != selectionTypeDirect || sel.Amount == nil {
			continue
		}
		n, err := selectionCount(sel)
		if err != nil {
			return nil, err
		}
		total = total.Add(sel.Amount.Mul(decimal.NewFromInt(n)))
		count += n
	}

	title := def.Title
	if title == "" {
		title = defaultDirectTitle
	}

	return &Result{
		AmountUSD:      total.Round(2),
		TotalItemCount: count,
		Description:    title + " - Direct Payment",
		Currency:       model.CurrencyUSD,
	}, nil
}

// calcPriced обрабатывает варианты downloadable, offline и allinone.
// Позиции с неизвестными идентификаторами пропускаются и не считаются
// ошибкой; для allinone при включённом компоненте donation дополнительно
// учитываются позиции с произвольной суммой.
func calcPriced(def *catalog.Definition, selections []Selection) (*Result, error) {
	total := decimal.Zero
	var count int64

	for _, sel := range selections {
		if sel.Type == selectionTypeDirect {
			if !def.DonationEnabled || sel.Amount == nil {
				continue
			}
			n, err := selectionCount(sel)
			if err != nil {
				return nil, err
			}
			total = total.Add(sel.Amount.Mul(decimal.NewFromInt(n)))
			count += n
			continue
		}

		price, ok := def.Prices[sel.ID]
		if !ok {
			continue
		}
		n, err := selectionCount(sel)
		if err != nil {
			return nil, err
		}
		total = total.Add(price.Mul(decimal.NewFromInt(n)))
		count += n
	}

	title := def.Title
	if title == "" {
		title = defaultItemTitle
	}

	description := title
	if count > 1 {
		description = fmt.Sprintf("%s (x%d items)", title, count)
	}

	return &Result{
		AmountUSD:      total.Round(2),
		TotalItemCount: count,
		Description:    description,
		Currency:       model.CurrencyUSD,
	}, nil
}

func selectionCount(sel Selection) (int64, error) {
	if sel.Count == nil {
		return 1, nil
	}
	if *sel.Count < 0 {
		return 0, fmt.Errorf("%w: negative count %d", catalog.ErrInvalidCatalog, *sel.Count)
	}
	return *sel.Count, nil
}
