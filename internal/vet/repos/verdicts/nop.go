package verdicts

import "github.com/haukened/linkvet/internal/vet/domain"

// NopStore is used when persistence is disabled. It never holds a verdict.
type NopStore struct{}

func (NopStore) Get(string) (domain.StoredVerdict, bool, error) {
	return domain.StoredVerdict{}, false, nil
}

func (NopStore) Put(string, domain.StoredVerdict) error { return nil }

func (NopStore) VisitKeys(func(key []byte) bool) error { return nil }

func (NopStore) Stats() StoreStats { return StoreStats{} }

func (NopStore) Close() error { return nil }

var _ Store = NopStore{}
