package account

import (
	"context"
	"sync"
	"time"

	"github.com/awsl-project/antigravity-relay/internal/domain"
	"github.com/awsl-project/antigravity-relay/internal/logging"
	"github.com/awsl-project/antigravity-relay/internal/ratelimit"
)

var managerLog = logging.New("AccountManager")

// Manager is the single process-wide aggregator the dispatcher talks to. It
// owns the pool mutex and write-behind persistence; all exported methods are
// safe for concurrent use.
type Manager struct {
	store       *Store
	credentials *Credentials
	discover    func(ctx context.Context, email string) (string, error)
	maxWaitMs   int64

	mu   sync.Mutex
	pool *domain.Pool

	saveCh chan struct{}
}

// defaultMaxWaitBeforeErrorMs mirrors config.Config's MAX_WAIT_BEFORE_ERROR_MS
// default, used when callers construct a Manager without threading a config
// value through (e.g. tests).
const defaultMaxWaitBeforeErrorMs = int64(120000)

// NewManager initialises the manager from store, falling back to a single
// "database-sourced" placeholder account when the persisted pool is empty.
func NewManager(store *Store, credentials *Credentials, discover func(ctx context.Context, email string) (string, error)) (*Manager, error) {
	return NewManagerWithMaxWait(store, credentials, discover, defaultMaxWaitBeforeErrorMs)
}

// NewManagerWithMaxWait is NewManager with an explicit MAX_WAIT_BEFORE_ERROR_MS
// override, used by the process entrypoint to thread the configured value
// into PickStickyAccount's wait-vs-give-up decision.
func NewManagerWithMaxWait(store *Store, credentials *Credentials, discover func(ctx context.Context, email string) (string, error), maxWaitMs int64) (*Manager, error) {
	pool, err := store.Load()
	if err != nil {
		return nil, err
	}
	if len(pool.Accounts) == 0 {
		pool.Accounts = append(pool.Accounts, &domain.Account{
			Email:   "unconfigured@local",
			Source:  domain.SourceDatabase,
			AddedAt: time.Now(),
		})
	}

	m := &Manager{
		store:       store,
		credentials: credentials,
		discover:    discover,
		maxWaitMs:   maxWaitMs,
		pool:        pool,
		saveCh:      make(chan struct{}, 1),
	}
	go m.saveLoop()
	return m, nil
}

func (m *Manager) saveLoop() {
	for range m.saveCh {
		m.mu.Lock()
		snapshot := *m.pool
		m.mu.Unlock()
		if err := m.store.Save(&snapshot); err != nil {
			managerLog.Errorf("save failed: %v", err)
		}
	}
}

func (m *Manager) enqueueSave() {
	select {
	case m.saveCh <- struct{}{}:
	default:
	}
}

func (m *Manager) PickStickyAccount(modelID string) StickyResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := PickStickyAccount(m.pool, m.pool.ActiveIndex, modelID, m.maxWaitMs, m.enqueueSave)
	if res.Account != nil {
		m.pool.ActiveIndex = res.NewIndex
	}
	return res
}

func (m *Manager) PickNext(modelID string) PickResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := PickNext(m.pool, m.pool.ActiveIndex, modelID, m.enqueueSave)
	m.pool.ActiveIndex = res.NewIndex
	return res
}

func (m *Manager) GetCurrentStickyAccount(modelID string) *domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return GetCurrentStickyAccount(m.pool, m.pool.ActiveIndex, modelID, m.enqueueSave)
}

func (m *Manager) IsAllRateLimited(modelID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ratelimit.IsAllRateLimited(m.pool.Accounts, modelID, time.Now())
}

func (m *Manager) GetMinWaitTimeMs(modelID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ratelimit.GetMinWaitTimeMs(m.pool.Accounts, modelID, time.Now())
}

func (m *Manager) ClearExpiredLimits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := ratelimit.ClearExpiredLimits(m.pool.Accounts, time.Now())
	if n > 0 {
		m.enqueueSave()
	}
	return n
}

func (m *Manager) MarkRateLimited(email, modelID string, resetMs int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.pool.Accounts {
		if a.Email == email {
			ratelimit.MarkRateLimited(a, modelID, resetMs, time.Now())
			m.enqueueSave()
			return
		}
	}
}

func (m *Manager) MarkInvalid(email, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.pool.Accounts {
		if a.Email == email {
			ratelimit.MarkInvalid(a, reason)
			m.enqueueSave()
			return
		}
	}
}

func (m *Manager) GetTokenForAccount(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	var refreshToken string
	for _, a := range m.pool.Accounts {
		if a.Email == email {
			refreshToken = a.RefreshToken
			break
		}
	}
	m.mu.Unlock()
	return m.credentials.GetTokenForAccount(ctx, email, refreshToken)
}

func (m *Manager) GetProjectForAccount(ctx context.Context, email string) (string, error) {
	m.mu.Lock()
	var configured string
	for _, a := range m.pool.Accounts {
		if a.Email == email {
			configured = a.ProjectID
			break
		}
	}
	m.mu.Unlock()
	if configured != "" {
		return configured, nil
	}
	return m.credentials.GetProjectForAccount(ctx, email, func(ctx context.Context) (string, error) {
		return m.discover(ctx, email)
	})
}

func (m *Manager) ClearTokenCache(email string)   { m.credentials.ClearTokenCache(email) }
func (m *Manager) ClearProjectCache(email string) { m.credentials.ClearProjectCache(email) }

func (m *Manager) GetAccountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pool.Accounts)
}

func (m *Manager) GetStatus() domain.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := domain.Status{AccountCount: len(m.pool.Accounts), ActiveIndex: m.pool.ActiveIndex}
	now := time.Now()
	for _, a := range m.pool.Accounts {
		if a.IsInvalid {
			status.InvalidEmails = append(status.InvalidEmails, a.Email)
			continue
		}
		for _, rl := range a.ModelRateLimits {
			if rl.IsRateLimited && rl.ResetTime > now.UnixMilli() {
				status.RateLimitedAny++
				break
			}
		}
	}
	return status
}

// AddAccount appends a new account to the pool and persists immediately.
func (m *Manager) AddAccount(acc *domain.Account) {
	m.mu.Lock()
	acc.AddedAt = time.Now()
	m.pool.Accounts = append(m.pool.Accounts, acc)
	m.mu.Unlock()
	m.enqueueSave()
}

// RemoveAccount deletes the account with the given email, if present.
func (m *Manager) RemoveAccount(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, a := range m.pool.Accounts {
		if a.Email == email {
			m.pool.Accounts = append(m.pool.Accounts[:i], m.pool.Accounts[i+1:]...)
			m.enqueueSave()
			return true
		}
	}
	return false
}

// ListAccounts returns a shallow copy of the pool's account slice.
func (m *Manager) ListAccounts() []*domain.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Account, len(m.pool.Accounts))
	copy(out, m.pool.Accounts)
	return out
}
