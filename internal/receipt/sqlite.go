package receipt

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS receipts (
	id           TEXT PRIMARY KEY,
	store_name   TEXT NOT NULL,
	visit_date   TEXT NOT NULL,
	total_amount INTEGER NOT NULL,
	filename     TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	raw_text     TEXT NOT NULL DEFAULT '',
	placeholder  INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS menu_items (
	receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
	position   INTEGER NOT NULL,
	name       TEXT NOT NULL,
	price      INTEGER NOT NULL,
	PRIMARY KEY (receipt_id, position)
);
CREATE TABLE IF NOT EXISTS cafe_visits (
	id          TEXT PRIMARY KEY,
	receipt_id  TEXT NOT NULL DEFAULT '',
	cafe_name   TEXT NOT NULL,
	visit_date  TEXT NOT NULL,
	menu_items  TEXT NOT NULL DEFAULT '',
	total_price INTEGER NOT NULL DEFAULT 0,
	location    TEXT NOT NULL DEFAULT '',
	rating      INTEGER NOT NULL DEFAULT 0,
	comment     TEXT NOT NULL DEFAULT '',
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);`

// SQLiteDB implements the DB interface on SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB opens or creates the database at path and its schema
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	// One writer at a time
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteDB{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// SaveReceipt upserts the receipt and replaces its menu items
func (s *SQLiteDB) SaveReceipt(receipt *Receipt) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`INSERT INTO receipts
		(id, store_name, visit_date, total_amount, filename, content_type, raw_text, placeholder, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			store_name = excluded.store_name,
			visit_date = excluded.visit_date,
			total_amount = excluded.total_amount,
			filename = excluded.filename,
			content_type = excluded.content_type,
			raw_text = excluded.raw_text,
			placeholder = excluded.placeholder,
			updated_at = excluded.updated_at`,
		receipt.ID, receipt.StoreName, formatTime(receipt.VisitDate), receipt.TotalAmount,
		receipt.Filename, receipt.ContentType, receipt.RawText, receipt.Placeholder,
		formatTime(receipt.CreatedAt), formatTime(receipt.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving receipt: %w", err)
	}

	if _, err = tx.Exec(`DELETE FROM menu_items WHERE receipt_id = ?`, receipt.ID); err != nil {
		return fmt.Errorf("clearing menu items: %w", err)
	}
	for i, item := range receipt.MenuItems {
		if _, err = tx.Exec(`INSERT INTO menu_items (receipt_id, position, name, price) VALUES (?, ?, ?, ?)`,
			receipt.ID, i, item.Name, item.Price); err != nil {
			return fmt.Errorf("saving menu item: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing receipt: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const receiptColumns = `id, store_name, visit_date, total_amount, filename, content_type, raw_text, placeholder, created_at, updated_at`

func scanReceipt(row rowScanner) (*Receipt, error) {
	var (
		r                           Receipt
		visitDate, created, updated string
	)
	if err := row.Scan(&r.ID, &r.StoreName, &visitDate, &r.TotalAmount, &r.Filename,
		&r.ContentType, &r.RawText, &r.Placeholder, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if r.VisitDate, err = parseTime(visitDate); err != nil {
		return nil, fmt.Errorf("parsing visit date: %w", err)
	}
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if r.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &r, nil
}

func (s *SQLiteDB) menuItems(receiptID string) ([]MenuItem, error) {
	rows, err := s.db.Query(`SELECT name, price FROM menu_items WHERE receipt_id = ? ORDER BY position`, receiptID)
	if err != nil {
		return nil, fmt.Errorf("querying menu items: %w", err)
	}
	defer rows.Close()

	items := []MenuItem{}
	for rows.Next() {
		var item MenuItem
		if err := rows.Scan(&item.Name, &item.Price); err != nil {
			return nil, fmt.Errorf("scanning menu item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *SQLiteDB) GetReceipt(id string) (*Receipt, error) {
	r, err := scanReceipt(s.db.QueryRow(`SELECT `+receiptColumns+` FROM receipts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	if r.MenuItems, err = s.menuItems(id); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *SQLiteDB) ListReceipts() ([]*Receipt, error) {
	rows, err := s.db.Query(`SELECT ` + receiptColumns + ` FROM receipts`)
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	receipts := make([]*Receipt, 0)
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Items are loaded after the cursor is closed; the pool holds one connection
	for _, r := range receipts {
		if r.MenuItems, err = s.menuItems(r.ID); err != nil {
			return nil, err
		}
	}
	sortReceipts(receipts)
	return receipts, nil
}

func (s *SQLiteDB) DeleteReceipt(id string) error {
	res, err := s.db.Exec(`DELETE FROM receipts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting receipt: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteDB) SaveVisit(v *Visit) error {
	_, err := s.db.Exec(`INSERT INTO cafe_visits
		(id, receipt_id, cafe_name, visit_date, menu_items, total_price, location, rating, comment, latitude, longitude, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			receipt_id = excluded.receipt_id,
			cafe_name = excluded.cafe_name,
			visit_date = excluded.visit_date,
			menu_items = excluded.menu_items,
			total_price = excluded.total_price,
			location = excluded.location,
			rating = excluded.rating,
			comment = excluded.comment,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			updated_at = excluded.updated_at`,
		v.ID, v.ReceiptID, v.CafeName, formatTime(v.VisitDate), v.MenuItems, v.TotalPrice,
		v.Location, v.Rating, v.Comment, v.Latitude, v.Longitude,
		formatTime(v.CreatedAt), formatTime(v.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving visit: %w", err)
	}
	return nil
}

const visitColumns = `id, receipt_id, cafe_name, visit_date, menu_items, total_price, location, rating, comment, latitude, longitude, created_at, updated_at`

func scanVisit(row rowScanner) (*Visit, error) {
	var (
		v                           Visit
		visitDate, created, updated string
	)
	if err := row.Scan(&v.ID, &v.ReceiptID, &v.CafeName, &visitDate, &v.MenuItems, &v.TotalPrice,
		&v.Location, &v.Rating, &v.Comment, &v.Latitude, &v.Longitude, &created, &updated); err != nil {
		return nil, err
	}
	var err error
	if v.VisitDate, err = parseTime(visitDate); err != nil {
		return nil, fmt.Errorf("parsing visit date: %w", err)
	}
	if v.CreatedAt, err = parseTime(created); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if v.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}
	return &v, nil
}

func (s *SQLiteDB) GetVisit(id string) (*Visit, error) {
	v, err := scanVisit(s.db.QueryRow(`SELECT `+visitColumns+` FROM cafe_visits WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting visit: %w", err)
	}
	return v, nil
}

func (s *SQLiteDB) ListVisits() ([]*Visit, error) {
	rows, err := s.db.Query(`SELECT ` + visitColumns + ` FROM cafe_visits`)
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}
	defer rows.Close()

	visits := make([]*Visit, 0)
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning visit: %w", err)
		}
		visits = append(visits, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortVisits(visits)
	return visits, nil
}

func (s *SQLiteDB) DeleteVisit(id string) error {
	res, err := s.db.Exec(`DELETE FROM cafe_visits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting visit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("visit %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
