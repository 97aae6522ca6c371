package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmeshcher/searchable-system/internal/invoice"
	"github.com/mmeshcher/searchable-system/internal/model"
	"github.com/mmeshcher/searchable-system/internal/repository"
)

func TestHashPasswordDeterministic(t *testing.T) {
	a := hashPassword("user", "pass")
	b := hashPassword("user", "pass")
	c := hashPassword("user", "other")

	if string(a) != string(b) {
		t.Fatalf("hashPassword must be deterministic, got %x and %x", a, b)
	}
	if string(a) == string(c) {
		t.Fatalf("different passwords must produce different hashes")
	}
}

// memLedger — хранилище в памяти, воспроизводящее контракт репозитория:
// резервирования сериализуются мьютексом так же, как в PostgreSQL их
// сериализует блокировка строки пользователя.
type memLedger struct {
	mu sync.Mutex

	users       map[string]*model.User
	searchables map[int64]*model.Searchable

	// balances хранит текущий выводимый баланс по (userID, currency).
	balances map[string]int64

	withdrawals    []model.Withdrawal
	deposits       []model.Deposit
	invoices       []model.Invoice
	nextID         int64
	withdrawalByID map[string]int // индекс по external_id
	depositByID    map[string]int
}

func newMemLedger() *memLedger {
	return &memLedger{
		users:          map[string]*model.User{},
		searchables:    map[int64]*model.Searchable{},
		balances:       map[string]int64{},
		withdrawalByID: map[string]int{},
		depositByID:    map[string]int{},
		nextID:         1,
	}
}

func balanceKey(userID int64, c model.Currency) string {
	return fmt.Sprintf("%d/%s", userID, c)
}

func (m *memLedger) Close() error { return nil }

func (m *memLedger) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[login]; ok {
		return 0, repository.ErrUserExists
	}

	id := m.nextID
	m.nextID++
	m.users[login] = &model.User{ID: id, Login: login, PasswordHash: passwordHash}
	return id, nil
}

func (m *memLedger) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[login]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (m *memLedger) CreateSearchable(ctx context.Context, s *model.Searchable) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	copied := *s
	copied.ID = id
	m.searchables[id] = &copied
	return id, nil
}

func (m *memLedger) GetSearchable(ctx context.Context, id int64) (*model.Searchable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.searchables[id]
	if !ok {
		return nil, repository.ErrSearchableNotFound
	}
	return s, nil
}

func (m *memLedger) GetBalance(ctx context.Context, userID int64, currency model.Currency) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[balanceKey(userID, currency)], nil
}

func (m *memLedger) GetBalances(ctx context.Context, userID int64) (map[model.Currency]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := map[model.Currency]int64{}
	for _, c := range model.SupportedCurrencies {
		res[c] = m.balances[balanceKey(userID, c)]
	}
	return res, nil
}

func (m *memLedger) CreateBalancePayment(ctx context.Context, inv *model.Invoice) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey(inv.BuyerID, inv.Currency)
	if m.balances[key] < inv.AmountCents {
		return 0, &repository.InsufficientBalanceError{
			BalanceCents:  m.balances[key],
			RequiredCents: inv.AmountCents,
			Currency:      inv.Currency,
		}
	}

	m.balances[key] -= inv.AmountCents

	id := m.nextID
	m.nextID++
	copied := *inv
	copied.ID = id
	m.invoices = append(m.invoices, copied)
	return id, nil
}

func (m *memLedger) CreateInvoice(ctx context.Context, inv *model.Invoice) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	copied := *inv
	copied.ID = id
	m.invoices = append(m.invoices, copied)
	return id, nil
}

func (m *memLedger) CompletePayment(ctx context.Context, externalID string) (bool, error) {
	return false, nil
}

func (m *memLedger) FailPayment(ctx context.Context, externalID string) (bool, error) {
	return false, nil
}

func (m *memLedger) GetPendingPayments(ctx context.Context, limit int) ([]model.Payment, error) {
	return nil, nil
}

func (m *memLedger) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := balanceKey(w.UserID, w.Currency)
	if m.balances[key] < w.AmountCents {
		return 0, &repository.InsufficientBalanceError{
			BalanceCents:  m.balances[key],
			RequiredCents: w.AmountCents,
			Currency:      w.Currency,
		}
	}

	// Резервирование: pending-вывод сразу уменьшает баланс.
	m.balances[key] -= w.AmountCents

	id := m.nextID
	m.nextID++
	copied := *w
	copied.ID = id
	copied.Status = model.WithdrawalStatusPending
	m.withdrawals = append(m.withdrawals, copied)
	m.withdrawalByID[w.ExternalID] = len(m.withdrawals) - 1
	return id, nil
}

func (m *memLedger) CompleteWithdrawal(ctx context.Context, externalID string) (bool, error) {
	return m.finalizeWithdrawal(externalID, model.WithdrawalStatusComplete), nil
}

func (m *memLedger) FailWithdrawal(ctx context.Context, externalID string) (bool, error) {
	return m.finalizeWithdrawal(externalID, model.WithdrawalStatusFailed), nil
}

func (m *memLedger) finalizeWithdrawal(externalID string, status model.WithdrawalStatus) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.withdrawalByID[externalID]
	if !ok || m.withdrawals[idx].Status != model.WithdrawalStatusPending {
		return false
	}

	m.withdrawals[idx].Status = status
	if status == model.WithdrawalStatusFailed {
		// Возврат резервирования в баланс.
		key := balanceKey(m.withdrawals[idx].UserID, m.withdrawals[idx].Currency)
		m.balances[key] += m.withdrawals[idx].AmountCents
	}
	return true
}

func (m *memLedger) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Withdrawal
	for _, w := range m.withdrawals {
		if w.UserID == userID {
			res = append(res, w)
		}
	}
	return res, nil
}

func (m *memLedger) GetWithdrawal(ctx context.Context, userID, id int64) (*model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.withdrawals {
		if w.ID == id && w.UserID == userID {
			copied := w
			return &copied, nil
		}
	}
	return nil, repository.ErrWithdrawalNotFound
}

func (m *memLedger) GetPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Withdrawal
	for _, w := range m.withdrawals {
		if w.Status == model.WithdrawalStatusPending {
			res = append(res, w)
		}
	}
	return res, nil
}

func (m *memLedger) CreateDeposit(ctx context.Context, d *model.Deposit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	copied := *d
	copied.ID = id
	copied.Status = model.DepositStatusPending
	m.deposits = append(m.deposits, copied)
	m.depositByID[d.ExternalID] = len(m.deposits) - 1
	return id, nil
}

func (m *memLedger) CompleteDeposit(ctx context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.depositByID[externalID]
	if !ok || m.deposits[idx].Status != model.DepositStatusPending {
		return false, nil
	}

	m.deposits[idx].Status = model.DepositStatusComplete
	key := balanceKey(m.deposits[idx].UserID, m.deposits[idx].Currency)
	m.balances[key] += m.deposits[idx].AmountCents
	return true, nil
}

func (m *memLedger) FailDeposit(ctx context.Context, externalID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, ok := m.depositByID[externalID]
	if !ok || m.deposits[idx].Status != model.DepositStatusPending {
		return false, nil
	}
	m.deposits[idx].Status = model.DepositStatusFailed
	return true, nil
}

func (m *memLedger) GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []model.Deposit
	for _, d := range m.deposits {
		if d.UserID == userID {
			res = append(res, d)
		}
	}
	return res, nil
}

func (m *memLedger) GetDeposit(ctx context.Context, userID, id int64) (*model.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, d := range m.deposits {
		if d.ID == id && d.UserID == userID {
			copied := d
			return &copied, nil
		}
	}
	return nil, repository.ErrDepositNotFound
}

func (m *memLedger) GetPendingDeposits(ctx context.Context, limit int) ([]model.Deposit, error) {
	return nil, nil
}

func (m *memLedger) CreateReward(ctx context.Context, rw *model.Reward) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances[balanceKey(rw.UserID, rw.Currency)] += rw.AmountCents
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *memLedger) GetInvoices(ctx context.Context, f repository.InvoiceFilter) ([]repository.InvoiceWithPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []repository.InvoiceWithPayment
	for _, inv := range m.invoices {
		if f.BuyerID != nil && inv.BuyerID != *f.BuyerID {
			continue
		}
		if f.SellerID != nil && inv.SellerID != *f.SellerID {
			continue
		}
		item := repository.InvoiceWithPayment{Invoice: inv}
		if inv.Type == model.PaymentTypeBalance {
			item.PaymentStatus = model.PaymentStatusComplete
		} else {
			item.PaymentStatus = model.PaymentStatusPending
		}
		res = append(res, item)
	}
	return res, nil
}

const validUSDAccount = "79927398713"

func newLedgerService(ledger *memLedger) *Service {
	return NewService(ledger, nil, 100)
}

func directSearchable(t *testing.T, ledger *memLedger, sellerID int64) int64 {
	t.Helper()

	id, err := ledger.CreateSearchable(context.Background(), &model.Searchable{
		UserID:  sellerID,
		Type:    "direct",
		Payload: json.RawMessage(`{"type": "direct", "title": "Tip Jar"}`),
	})
	if err != nil {
		t.Fatalf("CreateSearchable error: %v", err)
	}
	return id
}

func directSelections(amount string) []invoice.Selection {
	a := decimal.RequireFromString(amount)
	return []invoice.Selection{{Type: "direct", Amount: &a}}
}

func TestCreateWithdrawal_Fee(t *testing.T) {
	ledger := newMemLedger()
	ledger.balances[balanceKey(1, model.CurrencyUSD)] = 10000
	svc := newLedgerService(ledger)

	w, err := svc.CreateWithdrawal(context.Background(), 1, validUSDAccount,
		decimal.RequireFromString("50.00"), "usd")
	if err != nil {
		t.Fatalf("CreateWithdrawal error: %v", err)
	}

	// Комиссия 0.1%: с 50.00 удерживается 0.05, получатель получает 49.95.
	if w.FeeCents != 5 {
		t.Fatalf("FeeCents = %d, want 5", w.FeeCents)
	}
	if w.AmountCents-w.FeeCents != 4995 {
		t.Fatalf("net = %d, want 4995", w.AmountCents-w.FeeCents)
	}
	if w.FeeCents >= w.AmountCents {
		t.Fatalf("fee must be less than amount")
	}
	if w.Status != model.WithdrawalStatusPending {
		t.Fatalf("Status = %q, want pending", w.Status)
	}
}

func TestCreateWithdrawal_Validation(t *testing.T) {
	ledger := newMemLedger()
	ledger.balances[balanceKey(1, model.CurrencyUSD)] = 100000
	svc := newLedgerService(ledger)

	tests := []struct {
		name     string
		address  string
		amount   string
		currency string
		wantErr  error
	}{
		{
			name:     "below minimum",
			address:  validUSDAccount,
			amount:   "0.50",
			currency: "usd",
			wantErr:  ErrBelowMinimum,
		},
		{
			name:     "negative amount",
			address:  validUSDAccount,
			amount:   "-5",
			currency: "usd",
			wantErr:  ErrNonPositiveAmount,
		},
		{
			name:     "bad address",
			address:  "not-an-account",
			amount:   "10.00",
			currency: "usd",
			wantErr:  ErrInvalidAddress,
		},
		{
			name:     "unsupported currency",
			address:  validUSDAccount,
			amount:   "10.00",
			currency: "eur",
			wantErr:  ErrUnsupportedCurrency,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateWithdrawal(context.Background(), 1, tt.address,
				decimal.RequireFromString(tt.amount), tt.currency)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	// Ни одна невалидная заявка не должна была дойти до резервирования.
	if len(ledger.withdrawals) != 0 {
		t.Fatalf("withdrawals created: %d, want 0", len(ledger.withdrawals))
	}
}

func TestCreateWithdrawal_CurrencyNormalized(t *testing.T) {
	ledger := newMemLedger()
	ledger.balances[balanceKey(1, model.CurrencyUSD)] = 10000
	svc := newLedgerService(ledger)

	w, err := svc.CreateWithdrawal(context.Background(), 1, validUSDAccount,
		decimal.RequireFromString("10.00"), "USD")
	if err != nil {
		t.Fatalf("CreateWithdrawal error: %v", err)
	}
	if w.Currency != model.CurrencyUSD {
		t.Fatalf("Currency = %q, want usd", w.Currency)
	}
}

func TestGetBalances_ConvertsToDollars(t *testing.T) {
	ledger := newMemLedger()
	ledger.balances[balanceKey(1, model.CurrencyUSD)] = 4500
	svc := newLedgerService(ledger)

	balances, err := svc.GetBalances(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetBalances error: %v", err)
	}
	if balances[model.CurrencyUSD] != 45.00 {
		t.Fatalf("usd = %v, want 45.00", balances[model.CurrencyUSD])
	}
	if balances[model.CurrencyUSDT] != 0 {
		t.Fatalf("usdt = %v, want 0", balances[model.CurrencyUSDT])
	}
}

func TestBalanceLifecycle(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newLedgerService(ledger)

	searchableID := directSearchable(t, ledger, 2)

	// Пополнение на $100 попадает в баланс только после подтверждения.
	dep, err := svc.CreateDeposit(ctx, 1, decimal.RequireFromString("100.00"), "usd")
	if err != nil {
		t.Fatalf("CreateDeposit error: %v", err)
	}

	balances, _ := svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 0 {
		t.Fatalf("pending deposit must not affect balance, got %v", balances[model.CurrencyUSD])
	}

	if _, err := ledger.CompleteDeposit(ctx, dep.ExternalID); err != nil {
		t.Fatalf("CompleteDeposit error: %v", err)
	}

	balances, _ = svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 100.00 {
		t.Fatalf("balance = %v, want 100.00", balances[model.CurrencyUSD])
	}

	// Две оплаты балансом: $25 и $30.
	if _, err := svc.PayWithBalance(ctx, 1, searchableID, directSelections("25.00")); err != nil {
		t.Fatalf("PayWithBalance error: %v", err)
	}
	balances, _ = svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 75.00 {
		t.Fatalf("balance = %v, want 75.00", balances[model.CurrencyUSD])
	}

	if _, err := svc.PayWithBalance(ctx, 1, searchableID, directSelections("30.00")); err != nil {
		t.Fatalf("PayWithBalance error: %v", err)
	}
	balances, _ = svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 45.00 {
		t.Fatalf("balance = %v, want 45.00", balances[model.CurrencyUSD])
	}

	// Оплата $50 при балансе $45 отклоняется без изменения состояния.
	_, err = svc.PayWithBalance(ctx, 1, searchableID, directSelections("50.00"))

	var insufficientErr *repository.InsufficientBalanceError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("err = %v, want InsufficientBalanceError", err)
	}
	if insufficientErr.BalanceCents != 4500 || insufficientErr.RequiredCents != 5000 {
		t.Fatalf("unexpected error details: %+v", insufficientErr)
	}

	balances, _ = svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 45.00 {
		t.Fatalf("balance after rejection = %v, want 45.00", balances[model.CurrencyUSD])
	}

	// Отклонённая оплата не оставляет следа в истории покупок.
	purchases, err := svc.GetPurchasesByUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetPurchasesByUser error: %v", err)
	}
	if len(purchases) != 2 {
		t.Fatalf("purchases = %d, want 2", len(purchases))
	}
	for _, p := range purchases {
		if p.PaymentStatus != model.PaymentStatusComplete {
			t.Fatalf("purchase status = %q, want complete", p.PaymentStatus)
		}
	}
}

func TestConcurrentWithdrawals_NoOverdraft(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.balances[balanceKey(1, model.CurrencyUSD)] = 4500
	svc := newLedgerService(ledger)

	const attempts = 2
	amount := decimal.RequireFromString("30.00")

	errs := make([]error, attempts)
	var wg sync.WaitGroup

	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.CreateWithdrawal(ctx, 1, validUSDAccount, amount, "usd")
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var insufficientErr *repository.InsufficientBalanceError
		if !errors.As(err, &insufficientErr) {
			t.Fatalf("unexpected error: %v", err)
		}
		if insufficientErr.RequiredCents != 3000 {
			t.Fatalf("RequiredCents = %d, want 3000", insufficientErr.RequiredCents)
		}
		rejected++
	}

	// Баланса $45 хватает ровно на один вывод по $30.
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("succeeded = %d, rejected = %d, want 1 and 1", succeeded, rejected)
	}

	balance, _ := svc.GetBalances(ctx, 1)
	if balance[model.CurrencyUSD] != 15.00 {
		t.Fatalf("final balance = %v, want 15.00", balance[model.CurrencyUSD])
	}
}

func TestFailedWithdrawalReleasesReservation(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	ledger.balances[balanceKey(1, model.CurrencyUSD)] = 10000
	svc := newLedgerService(ledger)

	w, err := svc.CreateWithdrawal(ctx, 1, validUSDAccount,
		decimal.RequireFromString("60.00"), "usd")
	if err != nil {
		t.Fatalf("CreateWithdrawal error: %v", err)
	}

	balances, _ := svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 40.00 {
		t.Fatalf("balance after reservation = %v, want 40.00", balances[model.CurrencyUSD])
	}

	changed, err := ledger.FailWithdrawal(ctx, w.ExternalID)
	if err != nil || !changed {
		t.Fatalf("FailWithdrawal = (%v, %v), want (true, nil)", changed, err)
	}

	balances, _ = svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 100.00 {
		t.Fatalf("balance after release = %v, want 100.00", balances[model.CurrencyUSD])
	}

	// Повторная финализация идемпотентна.
	changed, err = ledger.FailWithdrawal(ctx, w.ExternalID)
	if err != nil || changed {
		t.Fatalf("second FailWithdrawal = (%v, %v), want (false, nil)", changed, err)
	}
	balances, _ = svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 100.00 {
		t.Fatalf("balance after duplicate release = %v, want 100.00", balances[model.CurrencyUSD])
	}
}

func TestAuthenticateUser_InvalidCredentials(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newLedgerService(ledger)

	id, err := svc.RegisterUser(ctx, "user", "pass")
	if err != nil {
		t.Fatalf("RegisterUser error: %v", err)
	}

	if _, err := svc.AuthenticateUser(ctx, "user", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}

	got, err := svc.AuthenticateUser(ctx, "user", "pass")
	if err != nil {
		t.Fatalf("AuthenticateUser error: %v", err)
	}
	if got != id {
		t.Fatalf("user id = %d, want %d", got, id)
	}
}

func TestDepositHistoryAndStatus(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newLedgerService(ledger)

	dep, err := svc.CreateDeposit(ctx, 1, decimal.RequireFromString("100.00"), "usd")
	if err != nil {
		t.Fatalf("CreateDeposit error: %v", err)
	}

	got, err := svc.GetDeposit(ctx, 1, dep.ID)
	if err != nil {
		t.Fatalf("GetDeposit error: %v", err)
	}
	if got.Status != model.DepositStatusPending {
		t.Fatalf("status = %q, want pending", got.Status)
	}

	if _, err := ledger.CompleteDeposit(ctx, dep.ExternalID); err != nil {
		t.Fatalf("CompleteDeposit error: %v", err)
	}

	got, err = svc.GetDeposit(ctx, 1, dep.ID)
	if err != nil {
		t.Fatalf("GetDeposit error: %v", err)
	}
	if got.Status != model.DepositStatusComplete {
		t.Fatalf("status = %q, want complete", got.Status)
	}

	deposits, err := svc.GetDepositsByUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetDepositsByUser error: %v", err)
	}
	if len(deposits) != 1 {
		t.Fatalf("deposits = %d, want 1", len(deposits))
	}

	// Чужие пополнения не видны.
	if _, err := svc.GetDeposit(ctx, 2, dep.ID); !errors.Is(err, repository.ErrDepositNotFound) {
		t.Fatalf("err = %v, want ErrDepositNotFound", err)
	}
}

func TestRewardUser_CreditsBalance(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newLedgerService(ledger)

	if err := svc.RewardUser(ctx, 1, decimal.RequireFromString("5.00"), "usd"); err != nil {
		t.Fatalf("RewardUser error: %v", err)
	}

	balances, _ := svc.GetBalances(ctx, 1)
	if balances[model.CurrencyUSD] != 5.00 {
		t.Fatalf("balance = %v, want 5.00", balances[model.CurrencyUSD])
	}
}

func TestPayWithBalance_ZeroAmount(t *testing.T) {
	ctx := context.Background()
	ledger := newMemLedger()
	svc := newLedgerService(ledger)

	searchableID := directSearchable(t, ledger, 2)

	_, err := svc.PayWithBalance(ctx, 1, searchableID, nil)
	if !errors.Is(err, ErrNonPositiveAmount) {
		t.Fatalf("err = %v, want ErrNonPositiveAmount", err)
	}
}

func TestCreateSearchable_RejectsInvalidPayload(t *testing.T) {
	ledger := newMemLedger()
	svc := newLedgerService(ledger)

	_, err := svc.CreateSearchable(context.Background(), 1, json.RawMessage(`{"type": "mystery"}`))
	if err == nil {
		t.Fatalf("expected error for invalid payload")
	}
	if len(ledger.searchables) != 0 {
		t.Fatalf("invalid searchable must not be stored")
	}
}

func TestStartSettlementUpdates_NoGateway(t *testing.T) {
	svc := &Service{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		svc.StartSettlementUpdates(ctx)
		close(done)
	}()

	<-done
}
