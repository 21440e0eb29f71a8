package tr

import (
	"context"
	"testing"

	"github.com/psms-tech/go-backend/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTxFromCtx_Missing(t *testing.T) {
	tx, err := TxFromCtx(context.Background())
	require.ErrorIs(t, err, e.ErrTransactionNotFound)
	assert.Nil(t, tx)
}

func TestQuerierFromCtx_FallsBack(t *testing.T) {
	assert.Nil(t, QuerierFromCtx(context.Background(), nil))
}
