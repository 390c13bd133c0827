package receipt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
)

const (
	receiptBucketName  = "receipts"
	menuItemBucketName = "menu_items"
	visitBucketName    = "visits"
)

// DB defines the interface for database operations
type DB interface {
	// SaveReceipt saves a receipt header and its menu items
	SaveReceipt(receipt *Receipt) error

	// GetReceipt retrieves a receipt by ID
	GetReceipt(id string) (*Receipt, error)

	// ListReceipts returns all receipts, newest visit first
	ListReceipts() ([]*Receipt, error)

	// DeleteReceipt removes a receipt and its menu items
	DeleteReceipt(id string) error

	SaveVisit(visit *Visit) error
	GetVisit(id string) (*Visit, error)

	// ListVisits returns all visits, newest first
	ListVisits() ([]*Visit, error)

	DeleteVisit(id string) error

	// Close closes the database connection
	Close() error
}

// BoltDB implements the DB interface using BoltDB
type BoltDB struct {
	db *bbolt.DB
}

// NewBoltDB creates a new BoltDB instance
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening boltdb: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{receiptBucketName, menuItemBucketName, visitBucketName} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveReceipt writes the header to the receipts bucket and the line items to
// the menu_items bucket in one transaction
func (b *BoltDB) SaveReceipt(receipt *Receipt) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		header := *receipt
		header.MenuItems = nil
		data, err := json.Marshal(header)
		if err != nil {
			return fmt.Errorf("marshaling receipt: %w", err)
		}
		if err := tx.Bucket([]byte(receiptBucketName)).Put([]byte(receipt.ID), data); err != nil {
			return err
		}

		items := receipt.MenuItems
		if items == nil {
			items = []MenuItem{}
		}
		data, err = json.Marshal(items)
		if err != nil {
			return fmt.Errorf("marshaling menu items: %w", err)
		}
		return tx.Bucket([]byte(menuItemBucketName)).Put([]byte(receipt.ID), data)
	})
}

func loadReceipt(tx *bbolt.Tx, id, data []byte) (*Receipt, error) {
	var receipt Receipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("unmarshaling receipt: %w", err)
	}
	receipt.MenuItems = []MenuItem{}
	if items := tx.Bucket([]byte(menuItemBucketName)).Get(id); items != nil {
		if err := json.Unmarshal(items, &receipt.MenuItems); err != nil {
			return nil, fmt.Errorf("unmarshaling menu items: %w", err)
		}
	}
	return &receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (b *BoltDB) GetReceipt(id string) (*Receipt, error) {
	var receipt *Receipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(receiptBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		var err error
		receipt, err = loadReceipt(tx, []byte(id), data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ListReceipts returns all receipts
func (b *BoltDB) ListReceipts() ([]*Receipt, error) {
	receipts := make([]*Receipt, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(receiptBucketName)).ForEach(func(k, v []byte) error {
			receipt, err := loadReceipt(tx, k, v)
			if err != nil {
				return err
			}
			receipts = append(receipts, receipt)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortReceipts(receipts)
	return receipts, nil
}

// DeleteReceipt removes a receipt and its menu items
func (b *BoltDB) DeleteReceipt(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(receiptBucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("receipt %s: %w", id, ErrNotFound)
		}
		if err := tx.Bucket([]byte(menuItemBucketName)).Delete([]byte(id)); err != nil {
			return err
		}
		return bucket.Delete([]byte(id))
	})
}

func (b *BoltDB) SaveVisit(visit *Visit) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(visit)
		if err != nil {
			return fmt.Errorf("marshaling visit: %w", err)
		}
		return tx.Bucket([]byte(visitBucketName)).Put([]byte(visit.ID), data)
	})
}

func (b *BoltDB) GetVisit(id string) (*Visit, error) {
	var visit *Visit
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(visitBucketName)).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("visit %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(data, &visit)
	})
	if err != nil {
		return nil, err
	}
	return visit, nil
}

func (b *BoltDB) ListVisits() ([]*Visit, error) {
	visits := make([]*Visit, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(visitBucketName)).ForEach(func(k, v []byte) error {
			var visit Visit
			if err := json.Unmarshal(v, &visit); err != nil {
				return fmt.Errorf("unmarshaling visit: %w", err)
			}
			visits = append(visits, &visit)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sortVisits(visits)
	return visits, nil
}

func (b *BoltDB) DeleteVisit(id string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(visitBucketName))
		if bucket.Get([]byte(id)) == nil {
			return fmt.Errorf("visit %s: %w", id, ErrNotFound)
		}
		return bucket.Delete([]byte(id))
	})
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}

func sortReceipts(receipts []*Receipt) {
	sort.SliceStable(receipts, func(i, j int) bool {
		return receipts[i].VisitDate.After(receipts[j].VisitDate)
	})
}

func sortVisits(visits []*Visit) {
	sort.SliceStable(visits, func(i, j int) bool {
		return visits[i].VisitDate.After(visits[j].VisitDate)
	})
}
