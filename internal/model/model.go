// Package model содержит доменные сущности маркетплейса searchable.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// User представляет зарегистрированного пользователя площадки.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Currency задаёт валюту расчётов. Коды хранятся в нижнем регистре.
type Currency string

const (
	CurrencyUSD  Currency = "usd"
	CurrencyUSDT Currency = "usdt"
)

// NormalizeCurrency приводит код валюты к каноническому нижнему регистру.
// Нормализация выполняется один раз на границе системы, не внутри агрегации.
func NormalizeCurrency(code string) Currency {
	return Currency(strings.ToLower(strings.TrimSpace(code)))
}

// Supported сообщает, поддерживается ли валюта расчётным контуром.
func (c Currency) Supported() bool {
	return c == CurrencyUSD || c == CurrencyUSDT
}

// SupportedCurrencies перечисляет валюты, по которым считается баланс.
var SupportedCurrencies = []Currency{CurrencyUSD, CurrencyUSDT}

// PaymentType описывает способ оплаты инвойса.
type PaymentType string

const (
	PaymentTypeStripe  PaymentType = "stripe"
	PaymentTypeUSDT    PaymentType = "usdt"
	PaymentTypeBalance PaymentType = "balance"
)

// PaymentStatus описывает состояние платежа по инвойсу.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusComplete PaymentStatus = "complete"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// WithdrawalStatus описывает состояние вывода средств.
// Переходы: pending -> complete, pending -> failed.
type WithdrawalStatus string

const (
	WithdrawalStatusPending  WithdrawalStatus = "pending"
	WithdrawalStatusComplete WithdrawalStatus = "complete"
	WithdrawalStatusFailed   WithdrawalStatus = "failed"
)

// DepositStatus описывает состояние пополнения баланса.
type DepositStatus string

const (
	DepositStatusPending  DepositStatus = "pending"
	DepositStatusComplete DepositStatus = "complete"
	DepositStatusFailed   DepositStatus = "failed"
)

// Searchable представляет опубликованный товар каталога.
// Payload хранит публичное описание товара как есть; его разбором
// занимается пакет catalog.
type Searchable struct {
	ID        int64
	UserID    int64
	Type      string
	Payload   json.RawMessage
	Removed   bool
	CreatedAt time.Time
}

// Invoice представляет неизменяемый счёт на оплату. Сумма фиксируется в
// центах в момент создания и никогда не пересчитывается.
type Invoice struct {
	ID           int64
	BuyerID      int64
	SellerID     int64
	SearchableID int64
	AmountCents  int64
	FeeCents     int64
	Currency     Currency
	Type         PaymentType
	Description  string
	ExternalID   string
	CreatedAt    time.Time
}

// Payment представляет платёж, привязанный к инвойсу.
type Payment struct {
	ID         int64
	InvoiceID  int64
	Status     PaymentStatus
	ExternalID string
	CreatedAt  time.Time
}

// Withdrawal описывает вывод средств пользователя.
// Из баланса списывается полная сумма AmountCents; комиссия удерживается
// из неё при внешнем переводе.
type Withdrawal struct {
	ID          int64
	UserID      int64
	Address     string
	AmountCents int64
	FeeCents    int64
	Currency    Currency
	Status      WithdrawalStatus
	ExternalID  string
	CreatedAt   time.Time
}

// Deposit описывает пополнение баланса через внешнюю платёжную систему.
type Deposit struct {
	ID          int64
	UserID      int64
	AmountCents int64
	Currency    Currency
	Status      DepositStatus
	ExternalID  string
	CreatedAt   time.Time
}

// Reward описывает начисление вознаграждения пользователю.
type Reward struct {
	ID          int64
	UserID      int64
	AmountCents int64
	Currency    Currency
	CreatedAt   time.Time
}
