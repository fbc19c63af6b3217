package repository

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/template_store/storefront-service/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	ErrTemplateNotFound = errors.New("template not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrDuplicateUser    = errors.New("user already exists")
	ErrDuplicateKey     = errors.New("idempotency key already used")
)

type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

type RepoInterface interface {
	GetAllTemplates(ctx context.Context) ([]*domain.Template, error)
	SearchTemplates(ctx context.Context, query string) ([]*domain.Template, error)
	GetTemplate(ctx context.Context, id int64) (*domain.Template, error)

	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreatePurchase(ctx context.Context, purchase *domain.Purchase, event *OutboxEvent) error
	GetPurchaseByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Purchase, error)
	HasCompletedPurchase(ctx context.Context, userID, templateID int64) (bool, error)
	ListCompletedPurchases(ctx context.Context, userID int64) ([]*domain.PurchasedTemplate, error)

	Ping(ctx context.Context) error
	Close() error
}

// OutboxRepository is the slice of the repository the outbox poller needs.
type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// sqlite serializes writers anyway; one connection also keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const templateColumns = `id, name, description, price, category, file_path, image_path`

func (r *Repository) GetAllTemplates(ctx context.Context) ([]*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var templates []*domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return templates, nil
}

// SearchTemplates matches query against name, description and category ignoring
// case. sqlite's LIKE and lower() only fold ASCII, so the match runs in Go to
// handle Cyrillic text.
func (r *Repository) SearchTemplates(ctx context.Context, query string) ([]*domain.Template, error) {
	all, err := r.GetAllTemplates(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	if needle == "" {
		return all, nil
	}

	var found []*domain.Template
	for _, t := range all {
		if strings.Contains(strings.ToLower(t.Name), needle) ||
			strings.Contains(strings.ToLower(t.Description), needle) ||
			strings.Contains(strings.ToLower(t.Category), needle) {
			found = append(found, t)
		}
	}
	return found, nil
}

func (r *Repository) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	query := `SELECT ` + templateColumns + ` FROM templates WHERE id = ?`

	t, err := scanTemplate(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTemplateNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	t := &domain.Template{}
	err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Price, &t.Category, &t.FilePath, &t.ImagePath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan template: %w", err)
	}
	return t, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = id
	return nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return r.getUserWhere(ctx, "id = ?", id)
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getUserWhere(ctx, "email = ?", email)
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getUserWhere(ctx, "username = ?", username)
}

func (r *Repository) getUserWhere(ctx context.Context, cond string, arg any) (*domain.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE ` + cond

	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// CreatePurchase stores the purchase and its outbox event atomically.
func (r *Repository) CreatePurchase(ctx context.Context, purchase *domain.Purchase, event *OutboxEvent) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = time.Now().UTC()
	}

	var key sql.NullString
	if purchase.IdempotencyKey != "" {
		key = sql.NullString{String: purchase.IdempotencyKey, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO purchases (user_id, template_id, purchase_date, transaction_id, status, idempotency_key)
		VALUES (?, ?, ?, ?, ?, ?)`,
		purchase.UserID, purchase.TemplateID, purchase.PurchaseDate,
		purchase.TransactionID, string(purchase.Status), key)
	if isUniqueViolation(err) {
		return ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("failed to insert purchase: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read purchase id: %w", err)
	}

	if event != nil {
		if event.CreatedAt.IsZero() {
			event.CreatedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
			VALUES (?, ?, ?, ?)`,
			event.AggregateID, event.EventType, string(event.Payload), event.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert outbox event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purchase: %w", err)
	}

	purchase.ID = id
	return nil
}

func (r *Repository) GetPurchaseByIdempotencyKey(ctx context.Context, userID int64, key string) (*domain.Purchase, error) {
	query := `
		SELECT id, user_id, template_id, purchase_date, transaction_id, status, idempotency_key
		FROM purchases
		WHERE user_id = ? AND idempotency_key = ?`

	p := &domain.Purchase{}
	var status string
	var storedKey sql.NullString
	err := r.db.QueryRowContext(ctx, query, userID, key).Scan(
		&p.ID, &p.UserID, &p.TemplateID, &p.PurchaseDate, &p.TransactionID, &status, &storedKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query purchase: %w", err)
	}
	p.Status = domain.PurchaseStatus(status)
	p.IdempotencyKey = storedKey.String
	return p, nil
}

func (r *Repository) HasCompletedPurchase(ctx context.Context, userID, templateID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM purchases
		WHERE user_id = ? AND template_id = ? AND status = ?`,
		userID, templateID, string(domain.PurchaseStatusCompleted)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query purchases: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) ListCompletedPurchases(ctx context.Context, userID int64) ([]*domain.PurchasedTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, p.purchase_date
		FROM purchases p
		JOIN templates t ON t.id = p.template_id
		WHERE p.user_id = ? AND p.status = ?
		ORDER BY p.purchase_date, p.id`,
		userID, string(domain.PurchaseStatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchased []*domain.PurchasedTemplate
	for rows.Next() {
		pt := &domain.PurchasedTemplate{}
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.PurchaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		purchased = append(purchased, pt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return purchased, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox_events
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer rows.Close()

	var events []*OutboxEvent
	for rows.Next() {
		e := &OutboxEvent{}
		var payload string
		if err := rows.Scan(&e.ID, &e.AggregateID, &e.EventType, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return events, nil
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE outbox_events SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark event %d processed: %w", id, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlitedriver.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
