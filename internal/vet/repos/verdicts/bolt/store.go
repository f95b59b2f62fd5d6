package bolt

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/linkvet/internal/vet/domain"
	"github.com/haukened/linkvet/internal/vet/repos/verdicts"
)

var (
	bucketVerdicts = []byte("verdicts")
	bucketMeta     = []byte("meta")
	keyFingerprint = []byte("fingerprint")
)

// boltStore implements verdicts.Store using bbolt.
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path for verdicts produced with
// the rule set identified by fingerprint. Verdicts stored under a different
// fingerprint are discarded, since they no longer reflect the rules.
func New(path, fingerprint string) (verdicts.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if string(meta.Get(keyFingerprint)) != fingerprint {
			if err := tx.DeleteBucket(bucketVerdicts); err != nil && !errors.Is(err, bberrors.ErrBucketNotFound) {
				return err
			}
			if err := meta.Put(keyFingerprint, []byte(fingerprint)); err != nil {
				return err
			}
		}
		_, err = tx.CreateBucketIfNotExists(bucketVerdicts)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

func (s *boltStore) Get(url string) (domain.StoredVerdict, bool, error) {
	var (
		sv    domain.StoredVerdict
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVerdicts)
		if b == nil {
			return nil
		}
		v := b.Get([]byte(url))
		if v == nil {
			return nil
		}
		var err error
		sv, err = decodeVerdict(v)
		found = err == nil
		return err
	})
	return sv, found, err
}

func (s *boltStore) Put(url string, sv domain.StoredVerdict) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVerdicts).Put([]byte(url), encodeVerdict(sv))
	})
}

// VisitKeys walks every stored URL in key order. Keys passed to visit are
// copies and stay valid after the transaction.
func (s *boltStore) VisitKeys(visit func(key []byte) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVerdicts)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			kk := make([]byte, len(k))
			copy(kk, k)
			if !visit(kk) {
				return nil
			}
		}
		return nil
	})
}

func (s *boltStore) Stats() verdicts.StoreStats {
	st := verdicts.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketVerdicts); b != nil {
			st.Verdicts = uint64(b.Stats().KeyN)
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			st.Fingerprint = string(b.Get(keyFingerprint))
		}
		return nil
	})
	return st
}

var _ verdicts.Store = (*boltStore)(nil)
