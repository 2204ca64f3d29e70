package transaction

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const (
	transactionBucketName = "transactions"
	accountBucketName     = "accounts"
)

// ErrNotFound indicates the requested record does not exist
var ErrNotFound = errors.New("record not found")

// DB defines the interface for database operations
type DB interface {
	// SaveTransaction persists a transaction record
	SaveTransaction(tx *StoredTransaction) error

	// FindTransactionByReference returns the transaction with the given
	// reference number, or ErrNotFound
	FindTransactionByReference(reference string) (*StoredTransaction, error)

	// ListTransactions returns all transactions owned by a user
	ListTransactions(userID string) ([]*StoredTransaction, error)

	// SaveAccount persists an account registration
	SaveAccount(account *Account) error

	// GetAccount returns a user's registered account, or ErrNotFound
	GetAccount(userID, accountNumber string) (*Account, error)

	// DeleteAccount removes a user's account registration; ErrNotFound if
	// no such registration exists
	DeleteAccount(userID, accountNumber string) error

	// ListAccounts returns all accounts registered by a user
	ListAccounts(userID string) ([]*Account, error)

	// FindAccountsBySuffix returns every account whose full number ends
	// with the suffix, in stable key order
	FindAccountsBySuffix(suffix string) ([]*Account, error)

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

	// Create buckets if they don't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(transactionBucketName)); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(accountBucketName)); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating buckets: %w", err)
	}

	return &BoltDB{db: db}, nil
}

// SaveTransaction persists a transaction record keyed by its internal ID
func (b *BoltDB) SaveTransaction(record *StoredTransaction) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(transactionBucketName))
		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshaling transaction: %w", err)
		}
		return bucket.Put([]byte(record.ID), data)
	})
}

// FindTransactionByReference scans for a transaction with the given reference
// number. This is the pre-insert duplicate lookup; uniqueness is best effort,
// not a storage constraint.
func (b *BoltDB) FindTransactionByReference(reference string) (*StoredTransaction, error) {
	var found *StoredTransaction
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(transactionBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			if found != nil {
				return nil
			}
			var record StoredTransaction
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling transaction: %w", err)
			}
			if record.ReferenceNumber == reference {
				found = &record
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, fmt.Errorf("%w: transaction with reference %s", ErrNotFound, reference)
	}
	return found, nil
}

// ListTransactions returns all transactions owned by a user
func (b *BoltDB) ListTransactions(userID string) ([]*StoredTransaction, error) {
	records := make([]*StoredTransaction, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(transactionBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var record StoredTransaction
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("unmarshaling transaction: %w", err)
			}
			if record.UserID == userID {
				records = append(records, &record)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// accountKey builds the bucket key for a user's account registration. Two
// users may register the same account number independently.
func accountKey(userID, accountNumber string) []byte {
	return []byte(userID + "/" + accountNumber)
}

// SaveAccount persists an account registration
func (b *BoltDB) SaveAccount(account *Account) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		data, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("marshaling account: %w", err)
		}
		return bucket.Put(accountKey(account.UserID, account.AccountNumber), data)
	})
}

// GetAccount returns a user's registered account
func (b *BoltDB) GetAccount(userID, accountNumber string) (*Account, error) {
	var account *Account
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		data := bucket.Get(accountKey(userID, accountNumber))
		if data == nil {
			return fmt.Errorf("%w: account %s", ErrNotFound, accountNumber)
		}
		return json.Unmarshal(data, &account)
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes a user's account registration
func (b *BoltDB) DeleteAccount(userID, accountNumber string) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		key := accountKey(userID, accountNumber)
		if bucket.Get(key) == nil {
			return fmt.Errorf("%w: account %s", ErrNotFound, accountNumber)
		}
		return bucket.Delete(key)
	})
}

// ListAccounts returns all accounts registered by a user
func (b *BoltDB) ListAccounts(userID string) ([]*Account, error) {
	accounts := make([]*Account, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var account Account
			if err := json.Unmarshal(v, &account); err != nil {
				return fmt.Errorf("unmarshaling account: %w", err)
			}
			if account.UserID == userID {
				accounts = append(accounts, &account)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// FindAccountsBySuffix returns every registered account whose full number
// ends with the suffix. Results follow bucket key order, which keeps the
// first-match resolution policy deterministic.
func (b *BoltDB) FindAccountsBySuffix(suffix string) ([]*Account, error) {
	accounts := make([]*Account, 0)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(accountBucketName))
		return bucket.ForEach(func(k, v []byte) error {
			var account Account
			if err := json.Unmarshal(v, &account); err != nil {
				return fmt.Errorf("unmarshaling account: %w", err)
			}
			if strings.HasSuffix(account.AccountNumber, suffix) {
				accounts = append(accounts, &account)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

// Close closes the database connection
func (b *BoltDB) Close() error {
	return b.db.Close()
}
