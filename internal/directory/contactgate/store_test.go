package contactgate

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"business-directory/internal/common/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client, "contactgate", time.Hour)
	ctx := context.Background()

	e, err := store.Load(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.Equal(t, Locked, e.State)

	want := Entry{State: Revealed, Phone: "555-0100", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Save(ctx, "s1", "b1", want))

	got, err := store.Load(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	assert.True(t, mr.Exists("contactgate:s1:b1"))
	assert.Equal(t, time.Hour, mr.TTL("contactgate:s1:b1"))

	mr.FastForward(2 * time.Hour)
	got, err = store.Load(ctx, "s1", "b1")
	require.NoError(t, err)
	assert.Equal(t, Locked, got.State)
}

func TestRedisStore_Errors(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(mock redismock.ClientMock)
		wantState State
		wantErr   bool
	}{
		{
			name: "connection failure is unavailable",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("contactgate:s1:b1").SetErr(stderrors.New("connection refused"))
			},
			wantErr: true,
		},
		{
			name: "corrupt entry reads as locked",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("contactgate:s1:b1").SetVal("{not json")
			},
			wantState: Locked,
		},
		{
			name: "missing key reads as locked",
			setup: func(mock redismock.ClientMock) {
				mock.ExpectGet("contactgate:s1:b1").RedisNil()
			},
			wantState: Locked,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			t.Cleanup(func() { _ = db.Close() })
			tt.setup(mock)

			store := NewRedisStore(db, "contactgate", time.Hour)
			e, err := store.Load(context.Background(), "s1", "b1")

			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.ErrCodeUnavailable))
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantState, e.State)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestMemoryStore_DefaultsToLocked(t *testing.T) {
	s := NewMemoryStore()
	e, err := s.Load(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, Locked, e.State)
}
