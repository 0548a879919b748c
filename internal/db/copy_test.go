package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, "purchases", []string{"company_name", "sale_date"}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"purchases"}, []string{"company_name", "sale_amount"}).WillReturnResult(3)

	rows := [][]any{{"Acme Holdings", 150000.0}, {"Acme Holdings", 210000.0}, {"Blue Door LLC", 95000.0}}
	n, err := CopyFrom(context.Background(), mock, "purchases", []string{"company_name", "sale_amount"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"purchases"}, []string{"company_name"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{"Acme Holdings"}}
	_, err = CopyFrom(context.Background(), mock, "purchases", []string{"company_name"}, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO purchases")
	assert.NoError(t, mock.ExpectationsWereMet())
}
