// Package repository содержит реализацию доступа к данным в PostgreSQL.
//
// Таблицы инвойсов, платежей, пополнений, вознаграждений и выводов —
// единственный источник истины о балансе: баланс всегда выводится из
// истории записей и нигде не хранится как отдельное значение.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/searchable-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrSearchableNotFound возвращается, если товар не найден или снят с публикации.
	ErrSearchableNotFound = errors.New("searchable not found")
	// ErrWithdrawalNotFound возвращается, если вывод средств не найден.
	ErrWithdrawalNotFound = errors.New("withdrawal not found")
	// ErrDepositNotFound возвращается, если пополнение не найдено.
	ErrDepositNotFound = errors.New("deposit not found")
)

// InsufficientBalanceError возвращается, когда запрошенная сумма превышает
// текущий баланс. Содержит данные для ответа клиенту.
type InsufficientBalanceError struct {
	BalanceCents  int64
	RequiredCents int64
	Currency      model.Currency
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d %s",
		e.BalanceCents, e.RequiredCents, e.Currency)
}

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// withRetry повторяет операцию при конфликте сериализации, дедлоке или
// сетевой ошибке. Повтор всегда охватывает операцию целиком: частично
// выполненных резервирований не бывает.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				return retry.RetryableError(err)
			}
		}

		if isConnectionError(err) {
			return retry.RetryableError(err)
		}

		return err
	})
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash) VALUES ($1, $2) RETURNING id`,
		login, passwordHash,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, login)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, login, password_hash, created_at FROM users WHERE login = $1`,
		login,
	)

	var u model.User
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return &u, nil
}

// CreateSearchable сохраняет опубликованный товар и возвращает его идентификатор.
func (r *PostgresRepository) CreateSearchable(ctx context.Context, s *model.Searchable) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO searchables (user_id, type, payload) VALUES ($1, $2, $3) RETURNING id`,
		s.UserID, s.Type, s.Payload,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create searchable: %w", err)
	}
	return id, nil
}

// GetSearchable возвращает товар по идентификатору. Снятые с публикации
// товары не возвращаются.
func (r *PostgresRepository) GetSearchable(ctx context.Context, id int64) (*model.Searchable, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, type, payload, removed, created_at
		 FROM searchables
		 WHERE id = $1 AND removed = FALSE`,
		id,
	)

	var s model.Searchable
	err := row.Scan(&s.ID, &s.UserID, &s.Type, &s.Payload, &s.Removed, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSearchableNotFound
		}
		return nil, fmt.Errorf("get searchable: %w", err)
	}

	return &s, nil
}

// balanceQuery объединяет пять источников записей в одну сумму.
// Учитываются только записи с завершённым платежом; выводы в статусе
// pending уже уменьшают баланс — это и есть резервирование средств.
const balanceQuery = `
	WITH balance_sources AS (
		SELECT (i.amount - i.fee) AS net_amount
		FROM invoices i
		JOIN payments p ON p.invoice_id = i.id
		WHERE i.seller_id = $1 AND p.status = 'complete' AND i.currency = $2

		UNION ALL

		SELECT r.amount
		FROM rewards r
		WHERE r.user_id = $1 AND r.currency = $2

		UNION ALL

		SELECT d.amount
		FROM deposits d
		WHERE d.user_id = $1 AND d.status = 'complete' AND d.currency = $2

		UNION ALL

		SELECT -w.amount
		FROM withdrawals w
		WHERE w.user_id = $1 AND w.status IN ('pending', 'complete') AND w.currency = $2

		UNION ALL

		SELECT -i.amount
		FROM invoices i
		JOIN payments p ON p.invoice_id = i.id
		WHERE i.buyer_id = $1 AND i.type = 'balance' AND p.status = 'complete' AND i.currency = $2
	)
	SELECT COALESCE(SUM(net_amount), 0)::bigint FROM balance_sources`

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func balanceCents(ctx context.Context, q queryRower, userID int64, currency model.Currency) (int64, error) {
	var total int64
	if err := q.QueryRow(ctx, balanceQuery, userID, string(currency)).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum balance sources: %w", err)
	}
	return total, nil
}

// GetBalance возвращает текущий баланс пользователя в центах по одной валюте.
func (r *PostgresRepository) GetBalance(ctx context.Context, userID int64, currency model.Currency) (int64, error) {
	return balanceCents(ctx, r.pool, userID, currency)
}

// GetBalances возвращает балансы пользователя по всем поддерживаемым валютам.
func (r *PostgresRepository) GetBalances(ctx context.Context, userID int64) (map[model.Currency]int64, error) {
	res := make(map[model.Currency]int64, len(model.SupportedCurrencies))
	for _, c := range model.SupportedCurrencies {
		total, err := balanceCents(ctx, r.pool, userID, c)
		if err != nil {
			return nil, err
		}
		res[c] = total
	}
	return res, nil
}

// lockUser блокирует строку пользователя до конца транзакции, сериализуя
// все резервирования средств этого пользователя.
func lockUser(ctx context.Context, tx pgx.Tx, userID int64) error {
	var dummy int
	err := tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}
	return nil
}

// CreateBalancePayment атомарно проверяет баланс покупателя и создаёт
// инвойс с завершённым платежом типа balance. Проверка и списание
// выполняются под блокировкой строки пользователя: два одновременных
// платежа, вместе превышающих баланс, не могут пройти оба.
func (r *PostgresRepository) CreateBalancePayment(ctx context.Context, inv *model.Invoice) (int64, error) {
	var invoiceID int64

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUser(ctx, tx, inv.BuyerID); err != nil {
			return err
		}

		current, err := balanceCents(ctx, tx, inv.BuyerID, inv.Currency)
		if err != nil {
			return err
		}
		if current < inv.AmountCents {
			return &InsufficientBalanceError{
				BalanceCents:  current,
				RequiredCents: inv.AmountCents,
				Currency:      inv.Currency,
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO invoices (buyer_id, seller_id, searchable_id, amount, fee, currency, type, description, external_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id`,
			inv.BuyerID, inv.SellerID, inv.SearchableID, inv.AmountCents, inv.FeeCents,
			string(inv.Currency), string(model.PaymentTypeBalance), inv.Description, inv.ExternalID,
		).Scan(&invoiceID)
		if err != nil {
			return fmt.Errorf("insert invoice: %w", err)
		}

		// Платёж balance-типа завершается в той же транзакции: внешнего
		// подтверждения у него нет, атомарность даёт сама транзакция.
		_, err = tx.Exec(ctx,
			`INSERT INTO payments (invoice_id, status, external_id) VALUES ($1, $2, $3)`,
			invoiceID, string(model.PaymentStatusComplete), inv.ExternalID,
		)
		if err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return invoiceID, nil
}

// CreateInvoice создаёт инвойс с платежом в статусе pending для внешних
// способов оплаты (stripe, usdt). Продавец получает средства только после
// завершения платежа.
func (r *PostgresRepository) CreateInvoice(ctx context.Context, inv *model.Invoice) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var invoiceID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO invoices (buyer_id, seller_id, searchable_id, amount, fee, currency, type, description, external_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		inv.BuyerID, inv.SellerID, inv.SearchableID, inv.AmountCents, inv.FeeCents,
		string(inv.Currency), string(inv.Type), inv.Description, inv.ExternalID,
	).Scan(&invoiceID)
	if err != nil {
		return 0, fmt.Errorf("insert invoice: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO payments (invoice_id, status, external_id) VALUES ($1, $2, $3)`,
		invoiceID, string(model.PaymentStatusPending), inv.ExternalID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert payment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return invoiceID, nil
}

// CompletePayment переводит платёж в статус complete по внешнему
// идентификатору. Повторный вызов ничего не меняет: завершается только
// платёж в статусе pending.
func (r *PostgresRepository) CompletePayment(ctx context.Context, externalID string) (bool, error) {
	return r.finalizePayment(ctx, externalID, model.PaymentStatusComplete)
}

// FailPayment переводит платёж в статус failed. Идемпотентен.
func (r *PostgresRepository) FailPayment(ctx context.Context, externalID string) (bool, error) {
	return r.finalizePayment(ctx, externalID, model.PaymentStatusFailed)
}

func (r *PostgresRepository) finalizePayment(ctx context.Context, externalID string, status model.PaymentStatus) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $2 WHERE external_id = $1 AND status = 'pending'`,
		externalID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("finalize payment: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// GetPendingPayments возвращает платежи, ожидающие подтверждения внешней системой.
func (r *PostgresRepository) GetPendingPayments(ctx context.Context, limit int) ([]model.Payment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, invoice_id, status, external_id, created_at
		 FROM payments
		 WHERE status = 'pending'
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending payments: %w", err)
	}
	defer rows.Close()

	var res []model.Payment
	for rows.Next() {
		var p model.Payment
		var status string
		if err := rows.Scan(&p.ID, &p.InvoiceID, &status, &p.ExternalID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		p.Status = model.PaymentStatus(status)
		res = append(res, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateWithdrawal атомарно резервирует средства и создаёт запись о выводе
// в статусе pending. Использует блокировку строки пользователя: из двух
// одновременных выводов, вместе превышающих баланс, пройдёт не более
// одного.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, w *model.Withdrawal) (int64, error) {
	var withdrawalID int64

	err := r.withRetry(ctx, func(ctx context.Context) error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := lockUser(ctx, tx, w.UserID); err != nil {
			return err
		}

		current, err := balanceCents(ctx, tx, w.UserID, w.Currency)
		if err != nil {
			return err
		}
		if current < w.AmountCents {
			return &InsufficientBalanceError{
				BalanceCents:  current,
				RequiredCents: w.AmountCents,
				Currency:      w.Currency,
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO withdrawals (user_id, address, amount, fee, currency, status, external_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			w.UserID, w.Address, w.AmountCents, w.FeeCents,
			string(w.Currency), string(model.WithdrawalStatusPending), w.ExternalID,
		).Scan(&withdrawalID)
		if err != nil {
			return fmt.Errorf("insert withdrawal: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return withdrawalID, nil
}

// CompleteWithdrawal переводит вывод в статус complete по внешнему
// идентификатору. Повторное подтверждение ничего не меняет.
func (r *PostgresRepository) CompleteWithdrawal(ctx context.Context, externalID string) (bool, error) {
	return r.finalizeWithdrawal(ctx, externalID, model.WithdrawalStatusComplete)
}

// FailWithdrawal переводит вывод в статус failed, возвращая
// зарезервированные средства в баланс: записи со статусом failed не
// участвуют в агрегации. Сама запись не изменяется и не удаляется.
func (r *PostgresRepository) FailWithdrawal(ctx context.Context, externalID string) (bool, error) {
	return r.finalizeWithdrawal(ctx, externalID, model.WithdrawalStatusFailed)
}

func (r *PostgresRepository) finalizeWithdrawal(ctx context.Context, externalID string, status model.WithdrawalStatus) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE withdrawals SET status = $2 WHERE external_id = $1 AND status = 'pending'`,
		externalID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("finalize withdrawal: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// GetWithdrawalsByUser возвращает историю выводов пользователя.
func (r *PostgresRepository) GetWithdrawalsByUser(ctx context.Context, userID int64) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, address, amount, fee, currency, status, external_id, created_at
		 FROM withdrawals
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawals: %w", err)
	}
	defer rows.Close()

	return scanWithdrawals(rows)
}

// GetWithdrawal возвращает вывод средств пользователя по идентификатору.
func (r *PostgresRepository) GetWithdrawal(ctx context.Context, userID, id int64) (*model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, address, amount, fee, currency, status, external_id, created_at
		 FROM withdrawals
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select withdrawal: %w", err)
	}
	defer rows.Close()

	res, err := scanWithdrawals(rows)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrWithdrawalNotFound
	}
	return &res[0], nil
}

// GetPendingWithdrawals возвращает выводы, ожидающие подтверждения внешнего перевода.
func (r *PostgresRepository) GetPendingWithdrawals(ctx context.Context, limit int) ([]model.Withdrawal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, address, amount, fee, currency, status, external_id, created_at
		 FROM withdrawals
		 WHERE status = 'pending'
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending withdrawals: %w", err)
	}
	defer rows.Close()

	return scanWithdrawals(rows)
}

func scanWithdrawals(rows pgx.Rows) ([]model.Withdrawal, error) {
	var res []model.Withdrawal
	for rows.Next() {
		var (
			w        model.Withdrawal
			currency string
			status   string
		)
		if err := rows.Scan(&w.ID, &w.UserID, &w.Address, &w.AmountCents, &w.FeeCents,
			&currency, &status, &w.ExternalID, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		w.Currency = model.Currency(currency)
		w.Status = model.WithdrawalStatus(status)
		res = append(res, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateDeposit создаёт запись о пополнении в статусе pending.
func (r *PostgresRepository) CreateDeposit(ctx context.Context, d *model.Deposit) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO deposits (user_id, amount, currency, status, external_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		d.UserID, d.AmountCents, string(d.Currency), string(model.DepositStatusPending), d.ExternalID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create deposit: %w", err)
	}
	return id, nil
}

// CompleteDeposit переводит пополнение в статус complete. Идемпотентен:
// только после этого сумма попадает в баланс.
func (r *PostgresRepository) CompleteDeposit(ctx context.Context, externalID string) (bool, error) {
	return r.finalizeDeposit(ctx, externalID, model.DepositStatusComplete)
}

// FailDeposit переводит пополнение в статус failed. Идемпотентен.
func (r *PostgresRepository) FailDeposit(ctx context.Context, externalID string) (bool, error) {
	return r.finalizeDeposit(ctx, externalID, model.DepositStatusFailed)
}

func (r *PostgresRepository) finalizeDeposit(ctx context.Context, externalID string, status model.DepositStatus) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE deposits SET status = $2 WHERE external_id = $1 AND status = 'pending'`,
		externalID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("finalize deposit: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// GetPendingDeposits возвращает пополнения, ожидающие подтверждения.
func (r *PostgresRepository) GetPendingDeposits(ctx context.Context, limit int) ([]model.Deposit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, currency, status, external_id, created_at
		 FROM deposits
		 WHERE status = 'pending'
		 ORDER BY created_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select pending deposits: %w", err)
	}
	defer rows.Close()

	return scanDeposits(rows)
}

// GetDepositsByUser возвращает историю пополнений пользователя.
func (r *PostgresRepository) GetDepositsByUser(ctx context.Context, userID int64) ([]model.Deposit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, currency, status, external_id, created_at
		 FROM deposits
		 WHERE user_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select deposits: %w", err)
	}
	defer rows.Close()

	return scanDeposits(rows)
}

// GetDeposit возвращает пополнение пользователя по идентификатору.
func (r *PostgresRepository) GetDeposit(ctx context.Context, userID, id int64) (*model.Deposit, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, amount, currency, status, external_id, created_at
		 FROM deposits
		 WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select deposit: %w", err)
	}
	defer rows.Close()

	res, err := scanDeposits(rows)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, ErrDepositNotFound
	}
	return &res[0], nil
}

func scanDeposits(rows pgx.Rows) ([]model.Deposit, error) {
	var res []model.Deposit
	for rows.Next() {
		var (
			d        model.Deposit
			currency string
			status   string
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.AmountCents, &currency, &status, &d.ExternalID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan deposit: %w", err)
		}
		d.Currency = model.Currency(currency)
		d.Status = model.DepositStatus(status)
		res = append(res, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// CreateReward создаёт запись о вознаграждении пользователя.
func (r *PostgresRepository) CreateReward(ctx context.Context, rw *model.Reward) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO rewards (user_id, amount, currency) VALUES ($1, $2, $3) RETURNING id`,
		rw.UserID, rw.AmountCents, string(rw.Currency),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("create reward: %w", err)
	}
	return id, nil
}

// InvoiceFilter задаёт условия выборки инвойсов.
type InvoiceFilter struct {
	BuyerID      *int64
	SellerID     *int64
	SearchableID *int64
	ExternalID   string
}

// GetInvoices возвращает инвойсы вместе со статусом платежа по условиям фильтра.
func (r *PostgresRepository) GetInvoices(ctx context.Context, f InvoiceFilter) ([]InvoiceWithPayment, error) {
	qb := newQueryBuilder()
	if f.BuyerID != nil {
		qb.where("i.buyer_id", "=", *f.BuyerID)
	}
	if f.SellerID != nil {
		qb.where("i.seller_id", "=", *f.SellerID)
	}
	if f.SearchableID != nil {
		qb.where("i.searchable_id", "=", *f.SearchableID)
	}
	if f.ExternalID != "" {
		qb.where("i.external_id", "=", f.ExternalID)
	}

	whereClause, args := qb.build()

	query := `
		SELECT i.id, i.buyer_id, i.seller_id, i.searchable_id, i.amount, i.fee,
		       i.currency, i.type, i.description, i.external_id, i.created_at,
		       p.status
		FROM invoices i
		LEFT JOIN payments p ON p.invoice_id = i.id
		WHERE ` + whereClause + `
		ORDER BY i.created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var res []InvoiceWithPayment
	for rows.Next() {
		var (
			item     InvoiceWithPayment
			currency string
			typ      string
			status   *string
		)
		if err := rows.Scan(&item.ID, &item.BuyerID, &item.SellerID, &item.SearchableID,
			&item.AmountCents, &item.FeeCents, &currency, &typ, &item.Description,
			&item.ExternalID, &item.CreatedAt, &status); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		item.Currency = model.Currency(currency)
		item.Type = model.PaymentType(typ)
		if status != nil {
			item.PaymentStatus = model.PaymentStatus(*status)
		}
		res = append(res, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// InvoiceWithPayment — инвойс вместе со статусом привязанного платежа.
type InvoiceWithPayment struct {
	model.Invoice
	PaymentStatus model.PaymentStatus
}
