package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDictionary_NilPool(t *testing.T) {
	h := CheckDictionary(context.Background(), nil)
	assert.False(t, h.Ready())
	assert.False(t, h.Reachable)
	assert.Error(t, h.Err)
}

func TestCheckDictionary_Unreachable(t *testing.T) {
	h := CheckDictionary(context.Background(), idlePool(t))

	assert.False(t, h.Reachable)
	assert.False(t, h.Ready())
	assert.Nil(t, h.RowsByTier)
	require.Error(t, h.Err)
	assert.Contains(t, h.Err.Error(), "ping failed")
}

func TestDictionaryHealth_Ready(t *testing.T) {
	tests := []struct {
		name string
		h    DictionaryHealth
		want bool
	}{
		{"table present", DictionaryHealth{Reachable: true, RowsByTier: map[string]int64{"us": 3}}, true},
		{"empty table", DictionaryHealth{Reachable: true, RowsByTier: map[string]int64{}}, true},
		{"table missing", DictionaryHealth{Reachable: true, Err: ErrNamesTableMissing}, false},
		{"unreachable", DictionaryHealth{Err: errors.New("refused")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.h.Ready())
		})
	}
}

func TestDictionaryHealth_Rows(t *testing.T) {
	h := DictionaryHealth{RowsByTier: map[string]int64{"us": 5, "foreign": 2, "wildcard": 1}}
	assert.Equal(t, int64(8), h.Rows())
	assert.Zero(t, (&DictionaryHealth{}).Rows())
}

func TestWaitForDictionary_NilPool(t *testing.T) {
	assert.Error(t, WaitForDictionary(context.Background(), nil, time.Millisecond, nil))
}

func TestWaitForDictionary_GivesUp(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var reasons []error
	err := WaitForDictionary(ctx, idlePool(t), 10*time.Millisecond, func(err error) {
		reasons = append(reasons, err)
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "not ready")
	require.NotEmpty(t, reasons)
	for _, r := range reasons {
		assert.Error(t, r)
	}
}
