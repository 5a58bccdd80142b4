package anchor

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// boltBucket holds fingerprint -> anchor reference pairs.
var boltBucket = []byte("anchors")

// Bolt is a single-node ledger backed by bbolt. It stands in for a
// distributed anchor in standalone deployments: writes are durable and
// the file is treated as append-only (no delete path exists).
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) the ledger file.
func OpenBolt(path string) (*Bolt, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open anchor ledger: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init anchor ledger: %w", err)
	}
	return &Bolt{db: db}, nil
}

// Submit records the fingerprint. Idempotent: re-submitting an already
// anchored fingerprint returns its existing reference.
func (b *Bolt) Submit(ctx context.Context, fingerprint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var ref string
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if existing := bucket.Get([]byte(fingerprint)); existing != nil {
			ref = string(existing)
			return nil
		}
		ref = referenceFor(fingerprint)
		return bucket.Put([]byte(fingerprint), []byte(ref))
	})
	if err != nil {
		return "", fmt.Errorf("anchor submit: %w", err)
	}
	return ref, nil
}

func (b *Bolt) Exists(ctx context.Context, fingerprint string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var found bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(boltBucket).Get([]byte(fingerprint)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("anchor lookup: %w", err)
	}
	return found, nil
}

// Close releases the ledger file.
func (b *Bolt) Close() error {
	return b.db.Close()
}
