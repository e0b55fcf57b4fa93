package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"offer-recommendation-api/internal/models"
)

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS offers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			store_id TEXT NOT NULL,
			title TEXT NOT NULL,
			category TEXT NOT NULL,
			product_name TEXT NOT NULL,
			discount_percentage REAL NOT NULL,
			is_default INTEGER NOT NULL,
			valid_until TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			category TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price_at_purchase REAL NOT NULL,
			purchased_at TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS feed_entries (
			user_id TEXT NOT NULL,
			offer_id INTEGER NOT NULL,
			store_id TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, offer_id, store_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_store_id ON offers(store_id)`,
		`CREATE INDEX IF NOT EXISTS idx_offers_valid_until ON offers(valid_until)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_user_id ON purchases(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_purchases_user_purchased_at ON purchases(user_id, purchased_at)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// UpsertOffer creates or updates an offer and returns its id. An offer with
// a zero id is inserted fresh; a non-zero id updates in place.
func (db *DB) UpsertOffer(ctx context.Context, offer models.ActiveOffer) (int64, error) {
	if offer.ID == 0 {
		res, err := db.conn.ExecContext(ctx, `INSERT INTO offers (
			store_id, title, category, product_name, discount_percentage,
			is_default, valid_until, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			offer.StoreID,
			offer.Title,
			offer.Category,
			offer.ProductName,
			offer.DiscountPercentage,
			offer.IsDefault,
			offer.ValidUntil.Format(time.RFC3339),
			time.Now().UTC().Format(time.RFC3339),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert offer: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to read offer id: %w", err)
		}
		return id, nil
	}

	query := `INSERT INTO offers (
		id, store_id, title, category, product_name, discount_percentage,
		is_default, valid_until, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		store_id = excluded.store_id,
		title = excluded.title,
		category = excluded.category,
		product_name = excluded.product_name,
		discount_percentage = excluded.discount_percentage,
		is_default = excluded.is_default,
		valid_until = excluded.valid_until,
		updated_at = excluded.updated_at`

	_, err := db.conn.ExecContext(ctx, query,
		offer.ID,
		offer.StoreID,
		offer.Title,
		offer.Category,
		offer.ProductName,
		offer.DiscountPercentage,
		offer.IsDefault,
		offer.ValidUntil.Format(time.RFC3339),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert offer: %w", err)
	}

	return offer.ID, nil
}

// InsertPurchases inserts multiple purchase history items in a single
// transaction.
func (db *DB) InsertPurchases(ctx context.Context, purchases []models.PurchaseHistoryItem) (int, error) {
	if len(purchases) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO purchases (
		id, user_id, product_name, category, quantity, price_at_purchase, purchased_at
	) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range purchases {
		_, err := stmt.ExecContext(ctx,
			item.ID,
			item.UserID,
			item.ProductName,
			item.Category,
			item.Quantity,
			item.PriceAtPurchase,
			item.PurchasedAt.Format(time.RFC3339),
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert purchase %s: %w", item.ID, err)
		}
		inserted++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// GetRecentPurchases returns up to limit purchases for a user, most recent
// first.
func (db *DB) GetRecentPurchases(ctx context.Context, userID string, limit int) ([]models.PurchaseHistoryItem, error) {
	query := `SELECT id, user_id, product_name, category, quantity, price_at_purchase, purchased_at
		FROM purchases
		WHERE user_id = ?
		ORDER BY purchased_at DESC
		LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var purchases []models.PurchaseHistoryItem
	for rows.Next() {
		var item models.PurchaseHistoryItem
		var purchasedAtStr string

		err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.ProductName,
			&item.Category,
			&item.Quantity,
			&item.PriceAtPurchase,
			&purchasedAtStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}

		item.PurchasedAt, err = time.Parse(time.RFC3339, purchasedAtStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse purchased_at: %w", err)
		}

		purchases = append(purchases, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating purchases: %w", err)
	}

	return purchases, nil
}

// GetActiveOffers returns a store's offers still valid at the given time,
// in catalog (insertion) order.
func (db *DB) GetActiveOffers(ctx context.Context, storeID string, now time.Time) ([]models.ActiveOffer, error) {
	query := `SELECT id, store_id, title, category, product_name, discount_percentage, is_default, valid_until
		FROM offers
		WHERE store_id = ?
		AND valid_until > ?
		ORDER BY id`

	rows, err := db.conn.QueryContext(ctx, query, storeID, now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query active offers: %w", err)
	}
	defer rows.Close()

	var offers []models.ActiveOffer
	for rows.Next() {
		var offer models.ActiveOffer
		var validUntilStr string

		err := rows.Scan(
			&offer.ID,
			&offer.StoreID,
			&offer.Title,
			&offer.Category,
			&offer.ProductName,
			&offer.DiscountPercentage,
			&offer.IsDefault,
			&validUntilStr,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}

		offer.ValidUntil, err = time.Parse(time.RFC3339, validUntilStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse valid_until: %w", err)
		}

		offers = append(offers, offer)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offers: %w", err)
	}

	return offers, nil
}

// UpsertFeedEntries records surfaced offers with ignore-on-conflict
// semantics: repeated scans of the same store never duplicate rows and
// never error.
func (db *DB) UpsertFeedEntries(ctx context.Context, entries []models.FeedEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO feed_entries (user_id, offer_id, store_id)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, offer_id, store_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		if _, err := stmt.ExecContext(ctx, entry.UserID, entry.OfferID, entry.StoreID); err != nil {
			return fmt.Errorf("failed to upsert feed entry for offer %d: %w", entry.OfferID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// CountFeedEntries returns the number of feed rows for a user at a store.
func (db *DB) CountFeedEntries(ctx context.Context, userID, storeID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_entries WHERE user_id = ? AND store_id = ?`,
		userID, storeID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count feed entries: %w", err)
	}
	return count, nil
}
