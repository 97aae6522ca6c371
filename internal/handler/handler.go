// Package handler содержит HTTP-обработчики API расчётного сервиса.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mmeshcher/searchable-system/internal/catalog"
	"github.com/mmeshcher/searchable-system/internal/invoice"
	"github.com/mmeshcher/searchable-system/internal/middleware"
	"github.com/mmeshcher/searchable-system/internal/model"
	"github.com/mmeshcher/searchable-system/internal/repository"
	"github.com/mmeshcher/searchable-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, login, password string) (int64, error)
	AuthenticateUser(ctx context.Context, login, password string) (int64, error)
	CreateSearchable(ctx context.Context, userID int64, payload json.RawMessage) (int64, error)
	GetSearchable(ctx context.Context, id int64) (*model.Searchable, error)
	GetBalances(ctx context.Context, userID int64) (map[model.Currency]float64, error)
	PayWithBalance(ctx context.Context, buyerID, searchableID int64, selections []invoice.Selection) (*model.Invoice, error)
	CreateInvoice(ctx context.Context, buyerID, searchableID int64, selections []invoice.Selection, payType model.PaymentType) (*model.Invoice, error)
	CreateWithdrawal(ctx context.Context, userID int64, address string, amount decimal.Decimal, currencyCode string) (*model.Withdrawal, error)
	GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error)
	GetWithdrawal(ctx context.Context, userID, id int64) (*model.Withdrawal, error)
	GetPurchasesByUser(ctx context.Context, userID int64) ([]repository.InvoiceWithPayment, error)
	CreateDeposit(ctx context.Context, userID int64, amount decimal.Decimal, currencyCode string) (*model.Deposit, error)
	GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error)
	GetDeposit(ctx context.Context, userID, id int64) (*model.Deposit, error)
}

// Handler реализует HTTP-обработчики API расчётного сервиса.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.RegisterUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("register user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	userID, err := h.service.AuthenticateUser(r.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) || errors.Is(err, service.ErrInvalidCredentials) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.logger.Error("login user error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	w.WriteHeader(http.StatusOK)
}

// CreateSearchable публикует новый товар текущего пользователя.
func (h *Handler) CreateSearchable(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var payload json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	id, err := h.service.CreateSearchable(r.Context(), userID, payload)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidCatalog) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("create searchable error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"searchable_id": id})
}

type searchableResponse struct {
	SearchableID int64           `json:"searchable_id"`
	UserID       int64           `json:"user_id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}

// GetSearchable возвращает товар по идентификатору.
func (h *Handler) GetSearchable(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	s, err := h.service.GetSearchable(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrSearchableNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get searchable error", zap.Error(err), zap.Int64("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, searchableResponse{
		SearchableID: s.ID,
		UserID:       s.UserID,
		Type:         s.Type,
		Payload:      s.Payload,
		CreatedAt:    s.CreatedAt,
	})
}

// GetBalance возвращает балансы текущего пользователя по всем валютам.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	balances, err := h.service.GetBalances(r.Context(), userID)
	if err != nil {
		h.logger.Error("get balance error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]map[model.Currency]float64{"balance": balances})
}

type paymentRequest struct {
	SearchableID int64               `json:"searchable_id"`
	Selections   []invoice.Selection `json:"selections"`
	PaymentType  string              `json:"payment_type,omitempty"`
}

type invoiceResponse struct {
	InvoiceID   int64   `json:"invoice_id"`
	ExternalID  string  `json:"external_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
	PaymentType string  `json:"payment_type"`
	Status      string  `json:"status"`
}

type insufficientBalanceResponse struct {
	Error    string  `json:"error"`
	Balance  float64 `json:"balance"`
	Required float64 `json:"required"`
	Currency string  `json:"currency"`
}

// PayWithBalance оплачивает покупку внутренним балансом пользователя.
func (h *Handler) PayWithBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inv, err := h.service.PayWithBalance(r.Context(), userID, req.SearchableID, req.Selections)
	if err != nil {
		var insufficientErr *repository.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficientErr):
			writeJSON(w, http.StatusBadRequest, insufficientBalanceResponse{
				Error:    "Insufficient balance",
				Balance:  float64(insufficientErr.BalanceCents) / 100,
				Required: float64(insufficientErr.RequiredCents) / 100,
				Currency: string(insufficientErr.Currency),
			})
		case errors.Is(err, repository.ErrSearchableNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, catalog.ErrInvalidCatalog), errors.Is(err, service.ErrNonPositiveAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("balance payment error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, invoiceResponse{
		InvoiceID:   inv.ID,
		ExternalID:  inv.ExternalID,
		Amount:      float64(inv.AmountCents) / 100,
		Currency:    string(inv.Currency),
		Description: inv.Description,
		PaymentType: string(inv.Type),
		Status:      string(model.PaymentStatusComplete),
	})
}

// CreateInvoice создаёт инвойс для оплаты через внешнюю платёжную систему.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	inv, err := h.service.CreateInvoice(r.Context(), userID, req.SearchableID, req.Selections,
		model.PaymentType(req.PaymentType))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSearchableNotFound):
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		case errors.Is(err, catalog.ErrInvalidCatalog), errors.Is(err, service.ErrNonPositiveAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		case err.Error() == "unsupported payment type":
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("create invoice error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, invoiceResponse{
		InvoiceID:   inv.ID,
		ExternalID:  inv.ExternalID,
		Amount:      float64(inv.AmountCents) / 100,
		Currency:    string(inv.Currency),
		Description: inv.Description,
		PaymentType: string(inv.Type),
		Status:      string(model.PaymentStatusPending),
	})
}

type withdrawalRequest struct {
	Address  string          `json:"address"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type withdrawalResponse struct {
	WithdrawalID int64   `json:"withdrawal_id"`
	Amount       float64 `json:"amount"`
	Fee          float64 `json:"fee"`
	Currency     string  `json:"currency"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at,omitempty"`
}

// Withdraw создаёт запрос на вывод средств текущего пользователя.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req withdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wd, err := h.service.CreateWithdrawal(r.Context(), userID, req.Address, req.Amount, req.Currency)
	if err != nil {
		var insufficientErr *repository.InsufficientBalanceError
		switch {
		case errors.As(err, &insufficientErr):
			writeJSON(w, http.StatusBadRequest, insufficientBalanceResponse{
				Error:    "Insufficient balance",
				Balance:  float64(insufficientErr.BalanceCents) / 100,
				Required: float64(insufficientErr.RequiredCents) / 100,
				Currency: string(insufficientErr.Currency),
			})
		case errors.Is(err, service.ErrInvalidAddress):
			http.Error(w, http.StatusText(http.StatusUnprocessableEntity), http.StatusUnprocessableEntity)
		case errors.Is(err, service.ErrBelowMinimum),
			errors.Is(err, service.ErrUnsupportedCurrency),
			errors.Is(err, service.ErrNonPositiveAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("withdraw error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, withdrawalResponse{
		WithdrawalID: wd.ID,
		Amount:       float64(wd.AmountCents) / 100,
		Fee:          float64(wd.FeeCents) / 100,
		Currency:     string(wd.Currency),
		Status:       string(wd.Status),
	})
}

type purchaseResponse struct {
	InvoiceID    int64   `json:"invoice_id"`
	SearchableID int64   `json:"searchable_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Description  string  `json:"description"`
	PaymentType  string  `json:"payment_type"`
	Status       string  `json:"status"`
	CreatedAt    string  `json:"created_at"`
}

// GetPurchases возвращает историю покупок текущего пользователя.
func (h *Handler) GetPurchases(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	purchases, err := h.service.GetPurchasesByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get purchases error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(purchases) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	res := make([]purchaseResponse, 0, len(purchases))
	for _, p := range purchases {
		res = append(res, purchaseResponse{
			InvoiceID:    p.ID,
			SearchableID: p.SearchableID,
			Amount:       float64(p.AmountCents) / 100,
			Currency:     string(p.Currency),
			Description:  p.Description,
			PaymentType:  string(p.Type),
			Status:       string(p.PaymentStatus),
			CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, res)
}

// GetWithdrawals возвращает историю выводов текущего пользователя.
func (h *Handler) GetWithdrawals(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	withdrawals, err := h.service.GetWithdrawalsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get withdrawals error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(withdrawals) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	res := make([]withdrawalResponse, 0, len(withdrawals))
	for _, wd := range withdrawals {
		res = append(res, withdrawalResponse{
			WithdrawalID: wd.ID,
			Amount:       float64(wd.AmountCents) / 100,
			Fee:          float64(wd.FeeCents) / 100,
			Currency:     string(wd.Currency),
			Status:       string(wd.Status),
			CreatedAt:    wd.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, res)
}

type depositRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type depositResponse struct {
	DepositID int64   `json:"deposit_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at,omitempty"`
}

// CreateDeposit создаёт запрос на пополнение баланса текущего пользователя.
func (h *Handler) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, err := h.service.CreateDeposit(r.Context(), userID, req.Amount, req.Currency)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUnsupportedCurrency),
			errors.Is(err, service.ErrNonPositiveAmount):
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		default:
			h.logger.Error("create deposit error", zap.Error(err), zap.Int64("userID", userID))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, depositResponse{
		DepositID: d.ID,
		Amount:    float64(d.AmountCents) / 100,
		Currency:  string(d.Currency),
		Status:    string(d.Status),
	})
}

// GetDeposits возвращает историю пополнений текущего пользователя.
func (h *Handler) GetDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	deposits, err := h.service.GetDepositsByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("get deposits error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(deposits) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	res := make([]depositResponse, 0, len(deposits))
	for _, d := range deposits {
		res = append(res, depositResponse{
			DepositID: d.ID,
			Amount:    float64(d.AmountCents) / 100,
			Currency:  string(d.Currency),
			Status:    string(d.Status),
			CreatedAt: d.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, res)
}

// GetDepositStatus возвращает состояние пополнения по идентификатору.
func (h *Handler) GetDepositStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	d, err := h.service.GetDeposit(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrDepositNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get deposit status error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, depositResponse{
		DepositID: d.ID,
		Amount:    float64(d.AmountCents) / 100,
		Currency:  string(d.Currency),
		Status:    string(d.Status),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	})
}

// GetWithdrawalStatus возвращает состояние вывода средств по идентификатору.
func (h *Handler) GetWithdrawalStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	wd, err := h.service.GetWithdrawal(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get withdrawal status error", zap.Error(err), zap.Int64("userID", userID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, withdrawalResponse{
		WithdrawalID: wd.ID,
		Amount:       float64(wd.AmountCents) / 100,
		Fee:          float64(wd.FeeCents) / 100,
		Currency:     string(wd.Currency),
		Status:       string(wd.Status),
		CreatedAt:    wd.CreatedAt.Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
