package planlimit

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

func TestClassifyByCode(t *testing.T) {
	err := Classify(fmt.Errorf("insert sale: %w", &pgconn.PgError{Code: "PL001", Message: "TRIAL_SALES_LIMIT", Hint: "upgrade now"}))
	require.ErrorIs(t, err, ErrTrialSalesLimitReached)
	require.NotErrorIs(t, err, ErrTrialCustomerLimitReached)

	var limit *LimitError
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, KindTrialSales, limit.Kind)
	assert.Equal(t, "upgrade now", limit.Hint)

	err = Classify(&pgconn.PgError{Code: "PL002", Message: "whatever"})
	require.ErrorIs(t, err, ErrTrialCustomerLimitReached)
	require.ErrorAs(t, err, &limit)
	assert.Equal(t, defaultCustomerHint, limit.Hint)
}

func TestClassifyByMessage(t *testing.T) {
	err := Classify(errors.New("rpc failed: TRIAL_SALES_LIMIT"))
	require.ErrorIs(t, err, ErrTrialSalesLimitReached)

	err = Classify(&pgconn.PgError{Code: "P0001", Message: "TRIAL_CUSTOMER_LIMIT"})
	require.ErrorIs(t, err, ErrTrialCustomerLimitReached)
}

func TestClassifyPassThrough(t *testing.T) {
	require.NoError(t, Classify(nil))

	ctxErr := fmt.Errorf("query: %w", context.Canceled)
	require.Same(t, ctxErr, Classify(ctxErr))

	limit := &LimitError{Kind: KindTrialSales, Hint: "x"}
	require.Same(t, error(limit), Classify(limit))

	raw := &pgconn.PgError{Code: "23503", Message: "foreign key violation"}
	err := Classify(raw)
	var persist *PersistenceError
	require.ErrorAs(t, err, &persist)
	assert.Equal(t, "foreign key violation", persist.Message)
	require.ErrorAs(t, err, &raw)
	require.Same(t, err, Classify(err))
}

func TestLimitsFor(t *testing.T) {
	assert.Equal(t, Limits{MaxSales: 50, MaxCustomers: 20}, LimitsFor(inventory.PlanTrial))
	assert.Equal(t, Limits{}, LimitsFor(inventory.PlanStandard))
}
