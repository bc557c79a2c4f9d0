package base

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ajitpratap0/idconnect/pkg/config"
	"github.com/ajitpratap0/idconnect/pkg/connector/objects"
	"github.com/ajitpratap0/idconnect/pkg/connector/schema"
	"github.com/ajitpratap0/idconnect/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConfig struct{}

func (stubConfig) Validate() error            { return nil }
func (stubConfig) Fields() []config.FieldInfo { return nil }
func (stubConfig) Confidential() []string     { return nil }

func TestLifecycle(t *testing.T) {
	bc := NewBaseConnector("test")
	assert.Equal(t, StateUninitialized, bc.State())

	err := bc.EnsureUsable()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIllegalState))
	assert.True(t, errors.IsType(bc.Activate(), errors.ErrorTypeIllegalState))

	assert.True(t, errors.IsType(bc.Init(nil), errors.ErrorTypeConfig))
	require.NoError(t, bc.Init(stubConfig{}))
	assert.Equal(t, StateInitialized, bc.State())
	assert.NotNil(t, bc.Configuration())
	assert.NoError(t, bc.EnsureUsable())

	err = bc.Init(stubConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIllegalState))

	require.NoError(t, bc.Activate())
	require.NoError(t, bc.Activate())
	assert.Equal(t, StateActive, bc.State())

	var order []int
	bc.OnDispose(func() { order = append(order, 1) })
	bc.OnDispose(func() { order = append(order, 2) })

	bc.Dispose()
	bc.Dispose()
	assert.Equal(t, []int{2, 1}, order)
	assert.Equal(t, StateDisposed, bc.State())
	assert.Nil(t, bc.Configuration())
	assert.True(t, errors.IsType(bc.EnsureUsable(), errors.ErrorTypeIllegalState))
	assert.True(t, errors.IsType(bc.Init(stubConfig{}), errors.ErrorTypeIllegalState))
}

func TestDisposeBeforeInit(t *testing.T) {
	bc := NewBaseConnector("test")
	bc.Dispose()
	assert.Equal(t, StateDisposed, bc.State())
	assert.Equal(t, "disposed", bc.State().String())
}

func TestSchemaMemo(t *testing.T) {
	bc := NewBaseConnector("test")
	var builds int32
	build := func() (*schema.Schema, error) {
		atomic.AddInt32(&builds, 1)
		return schema.NewBuilder().DefineObjectClass(schema.NewObjectClassInfo(objects.Account)).Build()
	}

	var wg sync.WaitGroup
	results := make([]*schema.Schema, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := bc.SchemaMemo().Get(build)
			assert.NoError(t, err)
			results[i] = s
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, s := range results {
		assert.Same(t, results[0], s)
	}

	bc.Dispose()
	s, err := bc.SchemaMemo().Get(build)
	require.NoError(t, err)
	assert.NotSame(t, results[0], s)
	assert.Equal(t, int32(2), atomic.LoadInt32(&builds))
}

func TestSchemaMemoDoesNotCacheErrors(t *testing.T) {
	var memo SchemaMemo
	_, err := memo.Get(func() (*schema.Schema, error) { return nil, stderrors.New("boom") })
	require.Error(t, err)

	s, err := memo.Get(func() (*schema.Schema, error) {
		return schema.NewBuilder().DefineObjectClass(schema.NewObjectClassInfo(objects.Group)).Build()
	})
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestRetryPolicy(t *testing.T) {
	rp := NewRetryPolicy(3, time.Millisecond)
	rp.RandomizeFactor = 0

	var retried []int
	rp.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	calls := 0
	err := rp.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New(errors.ErrorTypeConnection, "refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)

	calls = 0
	err = rp.ExecuteWithCondition(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrorTypeConfig, "bad password")
	}, errors.IsRetryable)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	calls = 0
	err = rp.ExecuteWithCondition(context.Background(), func() error {
		calls++
		return errors.New(errors.ErrorTypeTimeout, "slow")
	}, errors.IsRetryable)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, errors.HasType(err, errors.ErrorTypeTimeout))
}

func TestRetryPolicyCancelled(t *testing.T) {
	rp := NewRetryPolicy(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rp.Execute(ctx, func() error { return stderrors.New("fail") })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
}

func TestRetryDelay(t *testing.T) {
	rp := NewRetryPolicy(5, 100*time.Millisecond)
	rp.RandomizeFactor = 0
	rp.MaxDelay = 300 * time.Millisecond
	assert.Equal(t, 100*time.Millisecond, rp.GetDelay(0))
	assert.Equal(t, 200*time.Millisecond, rp.GetDelay(1))
	assert.Equal(t, 300*time.Millisecond, rp.GetDelay(2))

	assert.Equal(t, 3, RetryPolicyFromConfig(config.NewFrameworkConfig().Reliability).MaxAttempts)
	assert.Equal(t, 1, NoRetryPolicy().MaxAttempts)
}
