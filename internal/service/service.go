// Package service реализует бизнес-логику расчётного контура маркетплейса.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/searchable-system/internal/catalog"
	"github.com/mmeshcher/searchable-system/internal/gateway"
	"github.com/mmeshcher/searchable-system/internal/invoice"
	"github.com/mmeshcher/searchable-system/internal/model"
	"github.com/mmeshcher/searchable-system/internal/repository"
	"github.com/mmeshcher/searchable-system/internal/validation"
)

// FeeRate — комиссия за вывод средств (0.1%).
var FeeRate = decimal.RequireFromString("0.001")

// ErrBelowMinimum возвращается, если сумма вывода меньше минимальной.
var (
	ErrBelowMinimum = errors.New("amount is below platform minimum")
	// ErrInvalidAddress возвращается при некорректном адресе получателя.
	ErrInvalidAddress = errors.New("invalid withdrawal address")
	// ErrUnsupportedCurrency возвращается для валют вне расчётного контура.
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	// ErrNonPositiveAmount возвращается для нулевых и отрицательных сумм.
	ErrNonPositiveAmount = errors.New("amount must be positive")
	// ErrInvalidCredentials возвращается при неверной паре логин/пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error)
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
	CreateSearchable(ctx context.Context, s *model.Searchable) (int64, error)
	GetSearchable(ctx context.Context, id int64) (*model.Searchable, error)
	GetBalance(ctx context.Context, userID int64, currency model.Currency) (int64, error)
	GetBalances(ctx context.Context, userID int64) (map[model.Currency]int64, error)
	CreateBalancePayment(ctx context.Context, inv *model.Invoice) (int64, error)
	CreateInvoice(ctx context.Context, inv *model.Invoice) (int64, error)
	CompletePayment(ctx context.Context, externalID string) (bool, error)
	FailPayment(ctx context.Context, externalID string) (bool, error)
	GetPendingPayments(ctx context.Context, limit int) ([]model.Payment, error)
	CreateWithdrawal(ctx context.Context, w *model.Withdrawal) (int64, error)
	CompleteWithdrawal(ctx context.Context, externalID string) (bool, error)
	FailWithdrawal(ctx context.Context, externalID string) (bool, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, userID, id int64) (*model.Withdrawal, error)
	GetPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error)
	CreateDeposit(ctx context.Context, d *model.Deposit) (int64, error)
	CompleteDeposit(ctx context.Context, externalID string) (bool, error)
	FailDeposit(ctx context.Context, externalID string) (bool, error)
	GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error)
	GetDeposit(ctx context.Context, userID, id int64) (*model.Deposit, error)
	GetPendingDeposits(ctx context.Context, limit int) ([]model.Deposit, error)
	CreateReward(ctx context.Context, rw *model.Reward) (int64, error)
	GetInvoices(ctx context.Context, f repository.InvoiceFilter) ([]repository.InvoiceWithPayment, error)
}

// Gateway описывает контракт клиента расчётного шлюза.
type Gateway interface {
	GetTransferStatus(ctx context.Context, externalID string) (*gateway.OperationStatus, int, time.Duration, error)
	GetSessionStatus(ctx context.Context, externalID string) (*gateway.OperationStatus, int, time.Duration, error)
}

// Service содержит бизнес-логику расчётного контура.
type Service struct {
	repo               Repository
	gateway            Gateway
	minWithdrawalCents int64
}

// NewService создаёт новый сервис с указанным репозиторием и клиентом шлюза.
func NewService(repo Repository, gw Gateway, minWithdrawalCents int64) *Service {
	return &Service{
		repo:               repo,
		gateway:            gw,
		minWithdrawalCents: minWithdrawalCents,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя.
func (s *Service) RegisterUser(ctx context.Context, login, password string) (int64, error) {
	hashed := hashPassword(login, password)
	id, err := s.repo.CreateUser(ctx, login, hashed)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return 0, repository.ErrUserExists
		}
		return 0, err
	}
	return id, nil
}

// AuthenticateUser проверяет логин и пароль пользователя и возвращает его идентификатор.
func (s *Service) AuthenticateUser(ctx context.Context, login, password string) (int64, error) {
	u, err := s.repo.GetUserByLogin(ctx, login)
	if err != nil {
		return 0, err
	}

	hashed := hashPassword(login, password)
	if hex.EncodeToString(hashed) != hex.EncodeToString(u.PasswordHash) {
		return 0, ErrInvalidCredentials
	}

	return u.ID, nil
}

func hashPassword(login, password string) []byte {
	sum := sha256.Sum256([]byte(login + ":" + password))
	return sum[:]
}

// CreateSearchable публикует товар. Описание разбирается резолвером
// каталога, чтобы некорректный товар не попал в базу.
func (s *Service) CreateSearchable(ctx context.Context, userID int64, payload json.RawMessage) (int64, error) {
	def, err := catalog.Resolve(payload)
	if err != nil {
		return 0, err
	}

	return s.repo.CreateSearchable(ctx, &model.Searchable{
		UserID:  userID,
		Type:    string(def.Kind),
		Payload: payload,
	})
}

// GetSearchable возвращает товар по идентификатору.
func (s *Service) GetSearchable(ctx context.Context, id int64) (*model.Searchable, error) {
	return s.repo.GetSearchable(ctx, id)
}

// CalcInvoice вычисляет стоимость покупки для товара по выбранным
// позициям. Чистая операция: состояния не меняет, сколько угодно раз
// даёт один и тот же результат.
func (s *Service) CalcInvoice(ctx context.Context, searchableID int64, selections []invoice.Selection) (*invoice.Result, *model.Searchable, error) {
	searchable, err := s.repo.GetSearchable(ctx, searchableID)
	if err != nil {
		return nil, nil, err
	}

	def, err := catalog.Resolve(searchable.Payload)
	if err != nil {
		return nil, nil, err
	}

	res, err := invoice.Calc(def, selections)
	if err != nil {
		return nil, nil, err
	}

	return res, searchable, nil
}

// PayWithBalance оплачивает покупку внутренним балансом покупателя.
// Сумма выводится из выбранных позиций в момент создания инвойса и больше
// не пересчитывается; проверка баланса и списание атомарны.
func (s *Service) PayWithBalance(ctx context.Context, buyerID, searchableID int64, selections []invoice.Selection) (*model.Invoice, error) {
	res, searchable, err := s.CalcInvoice(ctx, searchableID, selections)
	if err != nil {
		return nil, err
	}

	amountCents := centsFromDecimal(res.AmountUSD)
	if amountCents <= 0 {
		return nil, ErrNonPositiveAmount
	}

	inv := &model.Invoice{
		BuyerID:      buyerID,
		SellerID:     searchable.UserID,
		SearchableID: searchable.ID,
		AmountCents:  amountCents,
		Currency:     res.Currency,
		Type:         model.PaymentTypeBalance,
		Description:  res.Description,
		ExternalID:   uuid.NewString(),
	}

	id, err := s.repo.CreateBalancePayment(ctx, inv)
	if err != nil {
		return nil, err
	}
	inv.ID = id

	return inv, nil
}

// CreateInvoice создаёт инвойс для оплаты через внешнюю систему (stripe
// или usdt). Платёж остаётся в статусе pending, пока шлюз не подтвердит
// оплату.
func (s *Service) CreateInvoice(ctx context.Context, buyerID, searchableID int64, selections []invoice.Selection, payType model.PaymentType) (*model.Invoice, error) {
	if payType != model.PaymentTypeStripe && payType != model.PaymentTypeUSDT {
		return nil, errors.New("unsupported payment type")
	}

	res, searchable, err := s.CalcInvoice(ctx, searchableID, selections)
	if err != nil {
		return nil, err
	}

	amountCents := centsFromDecimal(res.AmountUSD)
	if amountCents <= 0 {
		return nil, ErrNonPositiveAmount
	}

	currency := res.Currency
	if payType == model.PaymentTypeUSDT {
		currency = model.CurrencyUSDT
	}

	inv := &model.Invoice{
		BuyerID:      buyerID,
		SellerID:     searchable.UserID,
		SearchableID: searchable.ID,
		AmountCents:  amountCents,
		Currency:     currency,
		Type:         payType,
		Description:  res.Description,
		ExternalID:   uuid.NewString(),
	}

	id, err := s.repo.CreateInvoice(ctx, inv)
	if err != nil {
		return nil, err
	}
	inv.ID = id

	return inv, nil
}

// GetBalances возвращает балансы пользователя по валютам в денежных единицах.
func (s *Service) GetBalances(ctx context.Context, userID int64) (map[model.Currency]float64, error) {
	cents, err := s.repo.GetBalances(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := make(map[model.Currency]float64, len(cents))
	for c, v := range cents {
		res[c] = float64(v) / 100
	}
	return res, nil
}

// CreateWithdrawal создаёт запрос на вывод средств. Из баланса
// резервируется полная сумма; комиссия удерживается из неё при внешнем
// переводе, получатель получает amount - fee.
func (s *Service) CreateWithdrawal(ctx context.Context, userID int64, address string, amount decimal.Decimal, currencyCode string) (*model.Withdrawal, error) {
	currency := model.NormalizeCurrency(currencyCode)
	if !currency.Supported() {
		return nil, ErrUnsupportedCurrency
	}

	amountCents := centsFromDecimal(amount)
	if amountCents <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if amountCents < s.minWithdrawalCents {
		return nil, ErrBelowMinimum
	}

	if !validation.IsValidAddress(currency, address) {
		return nil, ErrInvalidAddress
	}

	fee := amount.Mul(FeeRate).Round(2)

	w := &model.Withdrawal{
		UserID:      userID,
		Address:     address,
		AmountCents: amountCents,
		FeeCents:    centsFromDecimal(fee),
		Currency:    currency,
		Status:      model.WithdrawalStatusPending,
		ExternalID:  uuid.NewString(),
	}

	id, err := s.repo.CreateWithdrawal(ctx, w)
	if err != nil {
		return nil, err
	}
	w.ID = id

	return w, nil
}

// GetPurchasesByUser возвращает покупки пользователя вместе со статусами
// платежей.
func (s *Service) GetPurchasesByUser(ctx context.Context, userID int64) ([]repository.InvoiceWithPayment, error) {
	return s.repo.GetInvoices(ctx, repository.InvoiceFilter{BuyerID: &userID})
}

// GetWithdrawalsByUser возвращает историю выводов пользователя.
func (s *Service) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	return s.repo.GetWithdrawalsByUser(ctx, userID)
}

// GetWithdrawal возвращает вывод средств пользователя по идентификатору.
func (s *Service) GetWithdrawal(ctx context.Context, userID, id int64) (*model.Withdrawal, error) {
	return s.repo.GetWithdrawal(ctx, userID, id)
}

// CreateDeposit создаёт запрос на пополнение баланса. Сумма попадёт в
// баланс только после подтверждения шлюзом.
func (s *Service) CreateDeposit(ctx context.Context, userID int64, amount decimal.Decimal, currencyCode string) (*model.Deposit, error) {
	currency := model.NormalizeCurrency(currencyCode)
	if !currency.Supported() {
		return nil, ErrUnsupportedCurrency
	}

	amountCents := centsFromDecimal(amount)
	if amountCents <= 0 {
		return nil, ErrNonPositiveAmount
	}

	d := &model.Deposit{
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    currency,
		Status:      model.DepositStatusPending,
		ExternalID:  uuid.NewString(),
	}

	id, err := s.repo.CreateDeposit(ctx, d)
	if err != nil {
		return nil, err
	}
	d.ID = id

	return d, nil
}

// GetDepositsByUser возвращает историю пополнений пользователя.
func (s *Service) GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error) {
	return s.repo.GetDepositsByUser(ctx, userID)
}

// GetDeposit возвращает пополнение пользователя по идентификатору.
func (s *Service) GetDeposit(ctx context.Context, userID, id int64) (*model.Deposit, error) {
	return s.repo.GetDeposit(ctx, userID, id)
}

// RewardUser начисляет пользователю вознаграждение.
func (s *Service) RewardUser(ctx context.Context, userID int64, amount decimal.Decimal, currencyCode string) error {
	currency := model.NormalizeCurrency(currencyCode)
	if !currency.Supported() {
		return ErrUnsupportedCurrency
	}

	amountCents := centsFromDecimal(amount)
	if amountCents <= 0 {
		return ErrNonPositiveAmount
	}

	_, err := s.repo.CreateReward(ctx, &model.Reward{
		UserID:      userID,
		AmountCents: amountCents,
		Currency:    currency,
	})
	return err
}

// centsFromDecimal переводит денежную сумму в центы с округлением до двух
// знаков (half-away-from-zero, поведение Round из shopspring/decimal).
func centsFromDecimal(d decimal.Decimal) int64 {
	return d.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}

// StartSettlementUpdates запускает фоновый процесс, который опрашивает
// расчётный шлюз и доводит выводы, платежи и пополнения до конечного
// статуса.
func (s *Service) StartSettlementUpdates(ctx context.Context) {
	if s.gateway == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.processWithdrawalBatch(ctx)
				s.processPaymentBatch(ctx)
				s.processDepositBatch(ctx)
			}
		}
	}()
}

func (s *Service) processWithdrawalBatch(ctx context.Context) {
	withdrawals, err := s.repo.GetPendingWithdrawals(ctx, 100)
	if err != nil {
		return
	}

	for _, w := range withdrawals {
		st, statusCode, retryAfter, err := s.gateway.GetTransferStatus(ctx, w.ExternalID)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if !s.waitRetryAfter(ctx, retryAfter) {
				return
			}
			continue
		}

		if st == nil {
			continue
		}

		// Финализация идемпотентна: повторное подтверждение не меняет
		// запись и не списывает средства второй раз.
		switch st.Status {
		case gateway.StatusComplete:
			_, _ = s.repo.CompleteWithdrawal(ctx, w.ExternalID)
		case gateway.StatusFailed:
			_, _ = s.repo.FailWithdrawal(ctx, w.ExternalID)
		}
	}
}

func (s *Service) processPaymentBatch(ctx context.Context) {
	payments, err := s.repo.GetPendingPayments(ctx, 100)
	if err != nil {
		return
	}

	for _, p := range payments {
		st, statusCode, retryAfter, err := s.gateway.GetSessionStatus(ctx, p.ExternalID)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if !s.waitRetryAfter(ctx, retryAfter) {
				return
			}
			continue
		}

		if st == nil {
			continue
		}

		switch st.Status {
		case gateway.StatusComplete:
			_, _ = s.repo.CompletePayment(ctx, p.ExternalID)
		case gateway.StatusFailed:
			_, _ = s.repo.FailPayment(ctx, p.ExternalID)
		}
	}
}

func (s *Service) processDepositBatch(ctx context.Context) {
	deposits, err := s.repo.GetPendingDeposits(ctx, 100)
	if err != nil {
		return
	}

	for _, d := range deposits {
		st, statusCode, retryAfter, err := s.gateway.GetSessionStatus(ctx, d.ExternalID)
		if err != nil {
			continue
		}

		if statusCode == 429 {
			if !s.waitRetryAfter(ctx, retryAfter) {
				return
			}
			continue
		}

		if st == nil {
			continue
		}

		switch st.Status {
		case gateway.StatusComplete:
			_, _ = s.repo.CompleteDeposit(ctx, d.ExternalID)
		case gateway.StatusFailed:
			_, _ = s.repo.FailDeposit(ctx, d.ExternalID)
		}
	}
}

func (s *Service) waitRetryAfter(ctx context.Context, retryAfter time.Duration) bool {
	if retryAfter <= 0 {
		return true
	}

	timer := time.NewTimer(retryAfter)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
