// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/akazantsev/boostmart/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим логином.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderUnavailable возвращается, если условный переход состояния не прошёл:
	// заказ уже не в ожидаемом состоянии.
	ErrOrderUnavailable = errors.New("order is not available")
	// ErrClaimLimitReached возвращается при достижении лимита одновременных заказов бустера.
	ErrClaimLimitReached = errors.New("claim limit reached")
	// ErrInsufficientBalance возвращается при попытке списания суммы, превышающей баланс.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrFilterNotFound возвращается, если фильтр услуги не найден.
	ErrFilterNotFound = errors.New("service filter not found")
	// ErrRankNotFound возвращается, если ранг не найден.
	ErrRankNotFound = errors.New("rank not found")
	// ErrCouponNotFound возвращается, если купон не найден.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrPaymentNotFound возвращается, если платёж не найден.
	ErrPaymentNotFound = errors.New("payment not found")
)

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

// withRetry повторяет операцию при сбоях сериализации и дедлоках.
// Конкурентные claim-транзакции и операции по балансу блокируют одни и те же
// строки, поэтому такие сбои здесь штатны.
func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	backoff := retry.WithMaxRetries(3, retry.NewConstant(500*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn()
		if err == nil {
			return nil
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) &&
			(pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected) {
			return retry.RetryableError(err)
		}

		return err
	})
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя с указанной ролью.
func (r *PostgresRepository) CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (login, password_hash, role) VALUES ($1, $2, $3) RETURNING id`,
		login, passwordHash, string(role),
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

const userColumns = `id, login, password_hash, role, balance, commission, assignable,
	solo_claim_limit, duo_claim_limit, documents_count, services, created_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u        model.User
		role     string
		services []byte
	)
	err := row.Scan(&u.ID, &u.Login, &u.PasswordHash, &role, &u.Balance, &u.Commission, &u.Assignable,
		&u.SoloClaimLimit, &u.DuoClaimLimit, &u.DocumentsCount, &services, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Role = model.Role(role)
	if len(services) > 0 {
		if err := json.Unmarshal(services, &u.Services); err != nil {
			return nil, fmt.Errorf("unmarshal booster services: %w", err)
		}
	}

	return &u, nil
}

// GetUserByLogin возвращает пользователя по логину.
func (r *PostgresRepository) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE login = $1`, login))
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// SetBoosterProfile обновляет конфигурацию бустера: доступность, комиссию
// по умолчанию, лимиты, число документов и настроенные услуги.
func (r *PostgresRepository) SetBoosterProfile(ctx context.Context, userID int64, assignable bool, commission int64, soloLimit, duoLimit, documents int, services []model.BoosterService) error {
	raw, err := json.Marshal(services)
	if err != nil {
		return fmt.Errorf("marshal booster services: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET role = $2, assignable = $3, commission = $4, solo_claim_limit = $5,
		     duo_claim_limit = $6, documents_count = $7, services = $8
		 WHERE id = $1`,
		userID, string(model.RoleBooster), assignable, commission, soloLimit, duoLimit, documents, raw,
	)
	if err != nil {
		return fmt.Errorf("update booster profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CreateOrder сохраняет новый заказ и возвращает его идентификаторы.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (int64, int64, error) {
	details, err := json.Marshal(o.Details)
	if err != nil {
		return 0, 0, fmt.Errorf("marshal order details: %w", err)
	}

	var id, orderID int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO orders (game, service, filter_id, title, total_price, details, customer_id, booster_id, state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, order_id`,
		o.Game, o.Service, o.FilterID, o.Title, o.TotalPrice, details, o.CustomerID, o.BoosterID, string(o.State),
	).Scan(&id, &orderID)
	if err != nil {
		return 0, 0, fmt.Errorf("insert order: %w", err)
	}

	return id, orderID, nil
}

const orderColumns = `id, order_id, game, service, filter_id, title, total_price, details,
	customer_id, booster_id, credentials_hash, state, started_at, deletion_flag, flag_time,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o       model.Order
		details []byte
		state   string
	)
	err := row.Scan(&o.ID, &o.OrderID, &o.Game, &o.Service, &o.FilterID, &o.Title, &o.TotalPrice,
		&details, &o.CustomerID, &o.BoosterID, &o.CredentialsHash, &state, &o.StartedAt,
		&o.DeletionFlag, &o.FlagTime, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	o.State = model.OrderState(state)
	if err := json.Unmarshal(details, &o.Details); err != nil {
		return nil, fmt.Errorf("unmarshal order details: %w", err)
	}

	return &o, nil
}

// GetOrderByID возвращает заказ по внутреннему идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
}

// ListOrdersByCustomer возвращает заказы покупателя, новые первыми.
func (r *PostgresRepository) ListOrdersByCustomer(ctx context.Context, customerID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`,
		customerID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// UpdateOrderState переводит заказ из состояния from в состояние to.
// Возвращает ErrOrderUnavailable, если заказ уже не в состоянии from:
// условное обновление и есть защита от гонок переходов.
func (r *PostgresRepository) UpdateOrderState(ctx context.Context, id int64, from, to model.OrderState) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET state = $3, updated_at = now() WHERE id = $1 AND state = $2`,
		id, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("update order state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderUnavailable
	}
	return nil
}

// SetOrderCredentials сохраняет хэш учётных данных и переводит заказ из
// ожидания аккаунта в следующее состояние.
func (r *PostgresRepository) SetOrderCredentials(ctx context.Context, id int64, credentialsHash string, to model.OrderState) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET credentials_hash = $2, state = $3, updated_at = now()
		 WHERE id = $1 AND state = $4`,
		id, credentialsHash, string(to), string(model.StateWaitingForAccount),
	)
	if err != nil {
		return fmt.Errorf("set order credentials: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderUnavailable
	}
	return nil
}

// ClaimOrder закрепляет заказ за бустером. Строка бустера блокируется на время
// транзакции, число его активных заказов пересчитывается внутри неё, а сам
// перевод состояния условный: двум конкурентным попыткам взять один заказ или
// превысить лимит одновременно это не позволит.
func (r *PostgresRepository) ClaimOrder(ctx context.Context, orderID, boosterID int64, duo bool, limit int) error {
	return r.withRetry(ctx, func() error {
		return r.claimOrderTx(ctx, orderID, boosterID, duo, limit)
	})
}

func (r *PostgresRepository) claimOrderTx(ctx context.Context, orderID, boosterID int64, duo bool, limit int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var dummy int
	err = tx.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, boosterID).Scan(&dummy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock booster for update: %w", err)
	}

	var active int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE booster_id = $1 AND state = $2
		   AND COALESCE((details->'general'->>'duo_order')::boolean, FALSE) = $3`,
		boosterID, string(model.StateBoosting), duo,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("count active orders: %w", err)
	}

	if active >= limit {
		return ErrClaimLimitReached
	}

	tag, err := tx.Exec(ctx,
		`UPDATE orders
		 SET state = $3, booster_id = $2, started_at = now(), updated_at = now()
		 WHERE id = $1 AND state = $4`,
		orderID, boosterID, string(model.StateBoosting), string(model.StateWaitingForBooster),
	)
	if err != nil {
		return fmt.Errorf("claim order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderUnavailable
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CompleteOrder завершает заказ и начисляет бустеру выплату одной транзакцией.
// Завершить можно только заказ этого бустера в состоянии проверки; повторный
// вызов не пройдёт условие по состоянию.
func (r *PostgresRepository) CompleteOrder(ctx context.Context, orderID, boosterID, payout int64, description, tag string) error {
	return r.withRetry(ctx, func() error {
		return r.completeOrderTx(ctx, orderID, boosterID, payout, description, tag)
	})
}

func (r *PostgresRepository) completeOrderTx(ctx context.Context, orderID, boosterID, payout int64, description, tag string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cmdTag, err := tx.Exec(ctx,
		`UPDATE orders SET state = $3, updated_at = now()
		 WHERE id = $1 AND booster_id = $2 AND state = $4`,
		orderID, boosterID, string(model.StateCompleted), string(model.StateVerificationRequired),
	)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderUnavailable
	}

	if payout > 0 {
		if err := applyBalanceTx(ctx, tx, model.AddBalance, boosterID, payout, description, tag); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CancelOrder отменяет незавершённый заказ и помечает его для очистки каналов.
func (r *PostgresRepository) CancelOrder(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET state = $2, deletion_flag = TRUE, flag_time = now(), updated_at = now()
		 WHERE id = $1 AND state NOT IN ($3, $4)`,
		id, string(model.StateCancelled), string(model.StateCompleted), string(model.StateCancelled),
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderUnavailable
	}
	return nil
}

// FindFilter возвращает фильтр услуги для пары (услуга, сервер).
func (r *PostgresRepository) FindFilter(ctx context.Context, service, server string) (*model.ServiceFilter, error) {
	var f model.ServiceFilter
	err := r.pool.QueryRow(ctx,
		`SELECT id, game, service, server FROM filters WHERE service = $1 AND server = $2`,
		service, server,
	).Scan(&f.ID, &f.Game, &f.Service, &f.Server)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFilterNotFound
		}
		return nil, fmt.Errorf("find filter: %w", err)
	}
	return &f, nil
}

// FindFilterWithoutServer возвращает первый фильтр услуги независимо от сервера.
func (r *PostgresRepository) FindFilterWithoutServer(ctx context.Context, service string) (*model.ServiceFilter, error) {
	var f model.ServiceFilter
	err := r.pool.QueryRow(ctx,
		`SELECT id, game, service, server FROM filters WHERE service = $1 ORDER BY id LIMIT 1`,
		service,
	).Scan(&f.ID, &f.Game, &f.Service, &f.Server)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFilterNotFound
		}
		return nil, fmt.Errorf("find filter without server: %w", err)
	}
	return &f, nil
}

// FindRankByCode возвращает ранг игры по коду.
func (r *PostgresRepository) FindRankByCode(ctx context.Context, game, code string) (*model.Rank, error) {
	var rk model.Rank
	err := r.pool.QueryRow(ctx,
		`SELECT id, game, code, min_lp, max_lp FROM ranks WHERE game = $1 AND code = $2`,
		game, code,
	).Scan(&rk.ID, &rk.Game, &rk.Code, &rk.MinLP, &rk.MaxLP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("find rank by code: %w", err)
	}
	return &rk, nil
}

// FindRankByLP возвращает ранг игры, в диапазон очков которого попадает lp.
func (r *PostgresRepository) FindRankByLP(ctx context.Context, game string, lp int64) (*model.Rank, error) {
	var rk model.Rank
	err := r.pool.QueryRow(ctx,
		`SELECT id, game, code, min_lp, max_lp FROM ranks
		 WHERE game = $1 AND min_lp <= $2 AND max_lp >= $2
		 ORDER BY id LIMIT 1`,
		game, lp,
	).Scan(&rk.ID, &rk.Game, &rk.Code, &rk.MinLP, &rk.MaxLP)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRankNotFound
		}
		return nil, fmt.Errorf("find rank by lp: %w", err)
	}
	return &rk, nil
}

func scanCoupon(row pgx.Row) (*model.Coupon, error) {
	var (
		c        model.Coupon
		ctype    string
		services []byte
	)
	err := row.Scan(&c.ID, &c.Code, &c.Discount, &ctype, &services, &c.Limit, &c.ExpireAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("scan coupon: %w", err)
	}

	c.Type = model.CouponType(ctype)
	if len(services) > 0 {
		if err := json.Unmarshal(services, &c.Services); err != nil {
			return nil, fmt.Errorf("unmarshal coupon services: %w", err)
		}
	}

	return &c, nil
}

// GetCouponByCode возвращает купон по коду.
func (r *PostgresRepository) GetCouponByCode(ctx context.Context, code string) (*model.Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx,
		`SELECT id, code, discount, type, services, usage_limit, expire_at FROM coupons WHERE code = $1`,
		code))
}

// GetCouponByID возвращает купон по идентификатору.
func (r *PostgresRepository) GetCouponByID(ctx context.Context, id int64) (*model.Coupon, error) {
	return scanCoupon(r.pool.QueryRow(ctx,
		`SELECT id, code, discount, type, services, usage_limit, expire_at FROM coupons WHERE id = $1`,
		id))
}

// ConsumeCoupon атомарно уменьшает остаток использований купона.
// Остаток не опускается ниже нуля; исчерпанный купон не списывается.
func (r *PostgresRepository) ConsumeCoupon(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET usage_limit = usage_limit - 1 WHERE id = $1 AND usage_limit > 0`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("consume coupon: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// CreatePayment сохраняет новую платёжную запись в состоянии ожидания.
func (r *PostgresRepository) CreatePayment(ctx context.Context, p *model.Payment) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payments (id, order_id, user_id, provider, amount, balance_used, coupon_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.OrderID, p.UserID, p.Provider, p.Amount, p.BalanceUsed, p.CouponID, string(model.PaymentPending),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetPayment возвращает платёж по идентификатору.
func (r *PostgresRepository) GetPayment(ctx context.Context, id string) (*model.Payment, error) {
	var (
		p      model.Payment
		status string
	)
	err := r.pool.QueryRow(ctx,
		`SELECT id, order_id, user_id, provider, amount, balance_used, coupon_id, status, created_at, updated_at
		 FROM payments WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.OrderID, &p.UserID, &p.Provider, &p.Amount, &p.BalanceUsed, &p.CouponID,
		&status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}

	p.Status = model.PaymentStatus(status)
	return &p, nil
}

// SettlePayment переводит платёж из ожидания в конечный статус.
// Возвращает false, если платёж уже обработан: единственная защита от
// повторной доставки вебхука.
func (r *PostgresRepository) SettlePayment(ctx context.Context, id string, to model.PaymentStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		id, string(to), string(model.PaymentPending),
	)
	if err != nil {
		return false, fmt.Errorf("settle payment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateBalance изменяет баланс пользователя и пишет неизменяемую запись журнала.
// Строка пользователя блокируется: параллельные списания не уведут баланс в минус.
func (r *PostgresRepository) UpdateBalance(ctx context.Context, kind model.TransactionKind, userID, amount int64, description, tag string) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if err := applyBalanceTx(ctx, tx, kind, userID, amount, description, tag); err != nil {
			return err
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

func applyBalanceTx(ctx context.Context, tx pgx.Tx, kind model.TransactionKind, userID, amount int64, description, tag string) error {
	var balance int64
	err := tx.QueryRow(ctx, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lock user for update: %w", err)
	}

	delta := amount
	if kind == model.SubtractBalance {
		if balance < amount {
			return ErrInsufficientBalance
		}
		delta = -amount
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET balance = balance + $2 WHERE id = $1`, userID, delta); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO transactions (user_id, kind, amount, description, tag) VALUES ($1, $2, $3, $4, $5)`,
		userID, string(kind), amount, description, tag,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}

	return nil
}

// SaveRateTable сохраняет таблицу цен услуги целиком.
func (r *PostgresRepository) SaveRateTable(ctx context.Context, service string, rows [][]string) error {
	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("marshal rate table: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO rate_tables (service, rows, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (service) DO UPDATE SET rows = EXCLUDED.rows, updated_at = now()`,
		service, raw,
	)
	if err != nil {
		return fmt.Errorf("save rate table: %w", err)
	}
	return nil
}

// LoadRateTables возвращает все сохранённые таблицы цен.
func (r *PostgresRepository) LoadRateTables(ctx context.Context) (map[string][][]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT service, rows FROM rate_tables`)
	if err != nil {
		return nil, fmt.Errorf("select rate tables: %w", err)
	}
	defer rows.Close()

	res := make(map[string][][]string)
	for rows.Next() {
		var (
			service string
			raw     []byte
		)
		if err := rows.Scan(&service, &raw); err != nil {
			return nil, fmt.Errorf("scan rate table: %w", err)
		}

		var table [][]string
		if err := json.Unmarshal(raw, &table); err != nil {
			return nil, fmt.Errorf("unmarshal rate table: %w", err)
		}
		res[service] = table
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// InsertAuditLog добавляет запись журнала аудита.
func (r *PostgresRepository) InsertAuditLog(ctx context.Context, userID, orderID int64, action, details string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_logs (user_id, order_id, action, details) VALUES ($1, $2, $3, $4)`,
		userID, orderID, action, details,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
