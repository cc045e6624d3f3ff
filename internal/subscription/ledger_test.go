package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BatmanBruc/bat-bot-neuro/types"
)

// memStore implements types.AccountStore with the same per-account
// read-modify-write discipline the Postgres store gets from row locks.
type memStore struct {
	mu       sync.Mutex
	accounts map[int64]*types.Account
	applied  map[string]bool

	extendCalls int
	failExtend  error
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*types.Account),
		applied:  make(map[string]bool),
	}
}

func (m *memStore) GetOrCreateAccount(_ context.Context, id int64, username, fullName string) (*types.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		a = &types.Account{TelegramID: id, Username: username, FullName: fullName, JoinedAt: time.Now().UTC()}
		m.accounts[id] = a
	} else {
		// Same guard as the Postgres upsert: empty strings from lookups by
		// bare id (admin grant) never wipe stored profile fields.
		if username != "" {
			a.Username = username
		}
		if fullName != "" {
			a.FullName = fullName
		}
	}
	copied := *a
	return &copied, nil
}

func (m *memStore) IncrementUsage(_ context.Context, id int64, kind types.UsageKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	if kind == types.UsageImage {
		a.ImageUsage++
	} else {
		a.TextUsage++
	}
	return nil
}

func (m *memStore) ExtendPremium(_ context.Context, id int64, days int) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extendLocked(id, days)
}

func (m *memStore) extendLocked(id int64, days int) (time.Time, error) {
	m.extendCalls++
	if m.failExtend != nil {
		return time.Time{}, m.failExtend
	}
	a, ok := m.accounts[id]
	if !ok {
		return time.Time{}, errors.New("account not found")
	}
	now := time.Now().UTC()
	base := now
	if a.PremiumUntil != nil && a.PremiumUntil.After(base) {
		base = *a.PremiumUntil
	}
	newUntil := base.Add(time.Duration(days) * 24 * time.Hour)
	a.PremiumUntil = &newUntil
	return newUntil, nil
}

func (m *memStore) RevokePremium(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return errors.New("account not found")
	}
	past := time.Now().UTC().Add(-24 * time.Hour)
	a.PremiumUntil = &past
	return nil
}

// ApplyPayment mirrors the Postgres transaction: the payment id sticks only
// when the extend succeeds.
func (m *memStore) ApplyPayment(_ context.Context, p types.AppliedPayment) (bool, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied[p.PaymentID] {
		return false, time.Time{}, nil
	}
	newUntil, err := m.extendLocked(p.TelegramID, p.DurationDays)
	if err != nil {
		return false, time.Time{}, err
	}
	m.applied[p.PaymentID] = true
	return true, newUntil, nil
}

func (m *memStore) ListAccountIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *memStore) AggregateStats(_ context.Context) (*types.Stats, error) {
	return &types.Stats{}, nil
}

func (m *memStore) premiumUntil(id int64) *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accounts[id].PremiumUntil
}

func TestLookupByBareIDKeepsProfile(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	_, err := store.GetOrCreateAccount(ctx, 42, "alice", "Alice A")
	require.NoError(t, err)

	// Admin grant resolves the target by id alone.
	a, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)
	assert.Equal(t, "Alice A", a.FullName)

	a, err = store.GetOrCreateAccount(ctx, 42, "alice_new", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, "alice_new", a.Username)
	assert.Equal(t, "Alice B", a.FullName)
}

func TestExtendFromNoPremium(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	until, err := ledger.Extend(ctx, 42, 30)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), until, 5*time.Second)
}

func TestExtendAdditivity(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	start := time.Now().UTC()
	_, err = ledger.Extend(ctx, 42, 10)
	require.NoError(t, err)
	until, err := ledger.Extend(ctx, 42, 20)
	require.NoError(t, err)

	// Back-to-back extends behave like a single extend for the summed days.
	assert.WithinDuration(t, start.Add(30*24*time.Hour), until, 5*time.Second)
}

func TestExtendFromExpiredResetsBase(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	expired := time.Now().UTC().Add(-10 * 24 * time.Hour)
	store.accounts[42].PremiumUntil = &expired

	until, err := ledger.Extend(ctx, 42, 5)
	require.NoError(t, err)

	// The expired past date does not anchor the new expiry.
	assert.WithinDuration(t, time.Now().UTC().Add(5*24*time.Hour), until, 5*time.Second)
}

func TestExtendFromActiveStacksOnExpiry(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	active := time.Now().UTC().Add(20 * 24 * time.Hour)
	store.accounts[42].PremiumUntil = &active

	until, err := ledger.Extend(ctx, 42, 10)
	require.NoError(t, err)
	assert.Equal(t, active.Add(10*24*time.Hour), until)
}

func TestExtendRejectsNonPositiveDays(t *testing.T) {
	ledger := NewLedger(newMemStore())
	ctx := context.Background()

	_, err := ledger.Extend(ctx, 42, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = ledger.Extend(ctx, 42, -5)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestRevokeDeactivatesImmediately(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	_, err = ledger.Extend(ctx, 42, 365)
	require.NoError(t, err)

	require.NoError(t, ledger.Revoke(ctx, 42))

	until := store.premiumUntil(42)
	require.NotNil(t, until)
	assert.True(t, until.Before(time.Now().UTC()))
	assert.False(t, types.PremiumActive(until, time.Now().UTC()))
}

func TestConcurrentExtendsLoseNothing(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	const n = 50
	start := time.Now().UTC()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Extend(ctx, 42, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	until := store.premiumUntil(42)
	require.NotNil(t, until)
	assert.WithinDuration(t, start.Add(n*24*time.Hour), *until, 5*time.Second)
}

func TestApplyPaymentOncePerPaymentID(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	p := types.AppliedPayment{
		PaymentID:    "2e8ac2dd-0001-5000-8000-000000000001",
		TelegramID:   42,
		DurationDays: 30,
	}

	applied, until, err := ledger.ApplyPayment(ctx, p)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), until, 5*time.Second)

	// Webhook replay: same payment id grants nothing more.
	applied, _, err = ledger.ApplyPayment(ctx, p)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 1, store.extendCalls)
}

func TestApplyPaymentRetryAfterFailedExtend(t *testing.T) {
	store := newMemStore()
	ledger := NewLedger(store)
	ctx := context.Background()
	_, err := store.GetOrCreateAccount(ctx, 42, "", "")
	require.NoError(t, err)

	p := types.AppliedPayment{
		PaymentID:    "2e8ac2dd-0002-5000-8000-000000000002",
		TelegramID:   42,
		DurationDays: 30,
	}

	store.failExtend = errors.New("storage down")
	_, _, err = ledger.ApplyPayment(ctx, p)
	require.Error(t, err)
	assert.Nil(t, store.premiumUntil(42))

	// The failed attempt must not have recorded the payment id: the
	// provider redelivers after the 500 and this delivery has to grant.
	store.failExtend = nil
	applied, until, err := ledger.ApplyPayment(ctx, p)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.WithinDuration(t, time.Now().UTC().Add(30*24*time.Hour), until, 5*time.Second)

	// And only once: a further replay still grants nothing more.
	applied, _, err = ledger.ApplyPayment(ctx, p)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 2, store.extendCalls)
}

func TestApplyPaymentRejectsBadDuration(t *testing.T) {
	ledger := NewLedger(newMemStore())
	ctx := context.Background()

	_, _, err := ledger.ApplyPayment(ctx, types.AppliedPayment{PaymentID: "x", TelegramID: 42})
	assert.ErrorIs(t, err, ErrInvalidDuration)
}
