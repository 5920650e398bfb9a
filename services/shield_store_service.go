package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"strideSyncAPI/internal/types/shield"
)

// ShieldPurchase is one recorded purchase grant. Granted may be lower than
// Quantity when the grant ran into the tier cap.
type ShieldPurchase struct {
	ID          string    `json:"id" db:"id"`
	Quantity    int       `json:"quantity" db:"quantity"`
	Granted     int       `json:"granted" db:"granted"`
	ProductID   string    `json:"product_id" db:"product_id"`
	PurchasedAt time.Time `json:"purchased_at" db:"purchased_at"`
}

// ShieldStoreService applies verified purchase grants to the shield
// aggregate. Grants beyond the tier cap are clamped silently; the lifetime
// purchase counter still records the full quantity so other devices converge
// on it.
type ShieldStoreService struct {
	db     *pgxpool.Pool
	store  *LocalStore
	userID string
}

func NewShieldStoreService(db *pgxpool.Pool, store *LocalStore, userID string) *ShieldStoreService {
	return &ShieldStoreService{db: db, store: store, userID: userID}
}

// GrantPurchase credits a purchase of shields inside one transaction and
// returns how many were actually granted after clamping at the cap.
func (s *ShieldStoreService) GrantPurchase(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("purchase quantity must be positive")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var available int
	var tier shield.Tier
	err = tx.QueryRow(ctx,
		`SELECT available, tier FROM shields WHERE user_id = $1 FOR UPDATE`,
		s.userID,
	).Scan(&available, &tier)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("failed to load shield for purchase: %w", err)
		}
		available = 0
		tier = shield.TierFree
		if _, err := tx.Exec(ctx,
			`INSERT INTO shields (user_id, tier, initialized, updated_at) VALUES ($1, $2, TRUE, $3)`,
			s.userID, tier, time.Now(),
		); err != nil {
			return 0, fmt.Errorf("failed to create shield row: %w", err)
		}
	}

	newAvailable := available + quantity
	if limit := tier.Cap(); newAvailable > limit {
		newAvailable = limit
	}
	granted := newAvailable - available

	if _, err := tx.Exec(ctx, `
		UPDATE shields
		SET available = $2,
		    purchased_lifetime = purchased_lifetime + $3,
		    initialized = TRUE,
		    updated_at = $4
		WHERE user_id = $1`,
		s.userID, newAvailable, quantity, time.Now(),
	); err != nil {
		return 0, fmt.Errorf("failed to apply purchase: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO shield_purchases (id, user_id, quantity, granted, product_id, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), s.userID, quantity, granted, productID, time.Now(),
	); err != nil {
		return 0, fmt.Errorf("failed to record purchase: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit purchase: %w", err)
	}

	s.store.InvalidateShield()
	return granted, nil
}

// ListPurchases returns this user's purchase history, newest first.
func (s *ShieldStoreService) ListPurchases(ctx context.Context) ([]*ShieldPurchase, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, quantity, granted, product_id, purchased_at
		FROM shield_purchases
		WHERE user_id = $1
		ORDER BY purchased_at DESC`,
		s.userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load purchases: %w", err)
	}
	defer rows.Close()

	var out []*ShieldPurchase
	for rows.Next() {
		p := &ShieldPurchase{}
		if err := rows.Scan(&p.ID, &p.Quantity, &p.Granted, &p.ProductID, &p.PurchasedAt); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
