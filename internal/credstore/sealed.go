package credstore

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/ssogate/pkg/cryptox"
)

// SealPurpose is the key derivation label for values sealed at rest.
const SealPurpose = "ssogate/credstore/v2"

type sealedStore struct {
	Store
	sealer *cryptox.Sealer
}

// Sealed encrypts every value written to inner and authenticates it on read.
// Each value is bound to its key, so a blob copied to another key does not
// open. Values that fail to open read as ErrCorrupt, which callers treat as
// absent.
func Sealed(inner Store, sealer *cryptox.Sealer) Store {
	return &sealedStore{Store: inner, sealer: sealer}
}

func (s *sealedStore) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.Store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.sealer.Open(raw, []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, key, err)
	}
	return plain, nil
}

func (s *sealedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sealed, err := s.sealer.Seal(value, []byte(key))
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}
	return s.Store.Set(ctx, key, sealed, ttl)
}

func (s *sealedStore) PurgeExpired(ctx context.Context) (int64, error) {
	if p, ok := s.Store.(Purger); ok {
		return p.PurgeExpired(ctx)
	}
	return 0, nil
}
