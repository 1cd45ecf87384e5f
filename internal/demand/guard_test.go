package demand

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/healthmap/internal/model"
	"github.com/sells-group/healthmap/internal/zonecache"
)

func TestLocalGuard_RejectsConcurrentPass(t *testing.T) {
	g := &LocalGuard{}
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- g.Do(ctx, func(context.Context) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered

	err := g.Do(ctx, func(context.Context) error {
		t.Fatal("second pass must not run")
		return nil
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrRecomputeInProgress))

	close(release)
	require.NoError(t, <-done)

	// Free again once the first pass finished.
	assert.NoError(t, g.Do(ctx, func(context.Context) error { return nil }))
}

func TestLocalGuard_PropagatesError(t *testing.T) {
	g := &LocalGuard{}
	err := g.Do(context.Background(), func(context.Context) error { return errors.New("boom") })
	assert.EqualError(t, err, "boom")
}

func TestAdvisoryGuard_Acquired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pg_try_advisory_xact_lock").
		WithArgs(RecomputeLockKey).
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectCommit()

	ran := false
	g := NewAdvisoryGuard(mock)
	err = g.Do(context.Background(), func(context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryGuard_Busy(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pg_try_advisory_xact_lock").
		WithArgs(RecomputeLockKey).
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(false))
	mock.ExpectRollback()

	g := NewAdvisoryGuard(mock)
	err = g.Do(context.Background(), func(context.Context) error {
		t.Fatal("must not run while the lock is held elsewhere")
		return nil
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrRecomputeInProgress))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryGuard_FnErrorRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT pg_try_advisory_xact_lock").
		WithArgs(RecomputeLockKey).
		WillReturnRows(pgxmock.NewRows([]string{"locked"}).AddRow(true))
	mock.ExpectRollback()

	g := NewAdvisoryGuard(mock)
	err = g.Do(context.Background(), func(context.Context) error { return errors.New("pass failed") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass failed")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// busyGuard always reports another pass in progress.
type busyGuard struct{}

func (busyGuard) Do(context.Context, func(context.Context) error) error {
	return eris.Wrap(model.ErrRecomputeInProgress, "busy")
}

func TestRun_GuardBusy(t *testing.T) {
	cache := zonecache.NewMemoryCache()
	e := NewEngine(&fakeData{}, cache, WithGuard(busyGuard{}))

	_, err := e.Run(context.Background())
	assert.True(t, eris.Is(err, model.ErrRecomputeInProgress))
}
