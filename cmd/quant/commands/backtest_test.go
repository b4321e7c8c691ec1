package commands

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fvgsim/internal/audit"
	"github.com/wonny/fvgsim/internal/backtest"
)

type recordingSaver struct {
	saved  []*audit.RunRecord
	ctxErr error
}

func (s *recordingSaver) SaveRun(ctx context.Context, run *audit.RunRecord) error {
	s.ctxErr = ctx.Err()
	if s.ctxErr != nil {
		return s.ctxErr
	}
	s.saved = append(s.saved, run)
	return nil
}

func TestPersistRun_SavesTruncatedRunAfterInterrupt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Ctrl+C

	res := &backtest.Result{RunID: uuid.New(), Truncated: true}
	saver := &recordingSaver{}

	require.NoError(t, persistRun(ctx, saver, res))
	assert.NoError(t, saver.ctxErr)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, res.RunID, saver.saved[0].RunID)
	assert.True(t, saver.saved[0].Truncated)
}
