package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain/entity"
)

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]byte{}} }

func (m *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (m *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = value
	return nil
}

type countingCatalog struct {
	calls    atomic.Int32
	products map[int64]entity.Product
	gate     chan struct{}
}

func (c *countingCatalog) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	c.calls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	p, ok := c.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func TestCachedCatalog_GuardaYReutiliza(t *testing.T) {
	next := &countingCatalog{products: map[int64]entity.Product{7: {ID: 7, Code: "P-7", Description: "Tornillo"}}}
	c := NewCachedCatalog(next, newMapCache(), time.Minute, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.GetByID(ctx, 7)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "P-7", p.Code)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}

func TestCachedCatalog_InexistenteNoSeGuarda(t *testing.T) {
	next := &countingCatalog{products: map[int64]entity.Product{}}
	c := NewCachedCatalog(next, newMapCache(), time.Minute, zerolog.Nop())
	ctx := context.Background()

	p, err := c.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, p)

	next.products[99] = entity.Product{ID: 99, Code: "NEW"}
	p, err = c.GetByID(ctx, 99)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "NEW", p.Code)
}

func TestCachedCatalog_CacheCaidaDegrada(t *testing.T) {
	next := &countingCatalog{products: map[int64]entity.Product{7: {ID: 7, Code: "P-7"}}}
	cache := newMapCache()
	cache.fail = errors.New("redis: connection refused")
	c := NewCachedCatalog(next, cache, time.Minute, zerolog.Nop())

	p, err := c.GetByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.ID)
}

func TestCachedCatalog_AgrupaConsultasSimultaneas(t *testing.T) {
	next := &countingCatalog{
		products: map[int64]entity.Product{7: {ID: 7, Code: "P-7"}},
		gate:     make(chan struct{}),
	}
	c := NewCachedCatalog(next, newMapCache(), time.Minute, zerolog.Nop())

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetByID(context.Background(), 7)
			errs <- err
		}()
	}
	require.Eventually(t, func() bool { return next.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(next.gate)
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), next.calls.Load())
}
