package account

import (
	"os"

	"github.com/bytedance/sonic"

	"github.com/awsl-project/antigravity-relay/internal/domain"
)

// Store persists the account pool to a single JSON file, matching the
// {accounts, settings, activeIndex} shape the core consumes and re-persists
// after every pool mutation.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the pool file, returning an empty pool (not an error) when the
// file doesn't exist yet.
func (s *Store) Load() (*domain.Pool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &domain.Pool{Accounts: []*domain.Account{}}, nil
	}
	if err != nil {
		return nil, err
	}
	var pool domain.Pool
	if err := sonic.Unmarshal(data, &pool); err != nil {
		return nil, err
	}
	if pool.Accounts == nil {
		pool.Accounts = []*domain.Account{}
	}
	return &pool, nil
}

// Save writes pool back to disk, overwriting the file in place.
func (s *Store) Save(pool *domain.Pool) error {
	data, err := sonic.MarshalIndent(pool, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}
