// Package planlimit turns data-store quota rejections into domain errors.
package planlimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-pos/internal/inventory"
)

// SQLSTATE codes raised by the plan-limit triggers.
const (
	CodeTrialSalesLimit    = "PL001"
	CodeTrialCustomerLimit = "PL002"
)

// Kind identifies the exhausted quota.
type Kind string

const (
	KindTrialSales     Kind = "TRIAL_SALES_LIMIT"
	KindTrialCustomers Kind = "TRIAL_CUSTOMER_LIMIT"
)

var (
	// ErrTrialSalesLimitReached matches any sales-quota LimitError.
	ErrTrialSalesLimitReached = errors.New("planlimit: trial sales limit reached")
	// ErrTrialCustomerLimitReached matches any customer-quota LimitError.
	ErrTrialCustomerLimitReached = errors.New("planlimit: trial customer limit reached")
)

var (
	defaultSalesHint    = fmt.Sprintf("Trial stores are limited to %d sales. Upgrade your plan to keep selling.", LimitsFor(inventory.PlanTrial).MaxSales)
	defaultCustomerHint = fmt.Sprintf("Trial stores are limited to %d customers. Upgrade your plan to add more.", LimitsFor(inventory.PlanTrial).MaxCustomers)
)

// LimitError is a recognised quota violation with a remediation hint.
type LimitError struct {
	Kind Kind
	Hint string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("planlimit: %s: %s", strings.ToLower(string(e.Kind)), e.Hint)
}

// Is matches the sentinel for the error's kind.
func (e *LimitError) Is(target error) bool {
	switch e.Kind {
	case KindTrialSales:
		return target == ErrTrialSalesLimitReached
	case KindTrialCustomers:
		return target == ErrTrialCustomerLimitReached
	}
	return false
}

// PersistenceError wraps an unrecognised data-store failure.
type PersistenceError struct {
	Message string
	Err     error
}

func (e *PersistenceError) Error() string {
	return "planlimit: persistence: " + e.Message
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Classify maps err to a domain error. nil stays nil; context errors and
// errors already classified are returned untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var limit *LimitError
	if errors.As(err, &limit) {
		return err
	}
	var persist *PersistenceError
	if errors.As(err, &persist) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if kind, ok := kindOf(pgErr.Code, pgErr.Message); ok {
			return &LimitError{Kind: kind, Hint: hintFor(kind, pgErr.Hint)}
		}
		return &PersistenceError{Message: pgErr.Message, Err: err}
	}
	if kind, ok := kindOf("", err.Error()); ok {
		return &LimitError{Kind: kind, Hint: hintFor(kind, "")}
	}
	return &PersistenceError{Message: err.Error(), Err: err}
}

func kindOf(code, message string) (Kind, bool) {
	switch {
	case code == CodeTrialSalesLimit, strings.Contains(message, string(KindTrialSales)):
		return KindTrialSales, true
	case code == CodeTrialCustomerLimit, strings.Contains(message, string(KindTrialCustomers)):
		return KindTrialCustomers, true
	}
	return "", false
}

func hintFor(kind Kind, hint string) string {
	if hint != "" {
		return hint
	}
	if kind == KindTrialCustomers {
		return defaultCustomerHint
	}
	return defaultSalesHint
}

// Limits are the quotas of a plan; zero means unlimited.
type Limits struct {
	MaxSales     int
	MaxCustomers int
}

// LimitsFor returns the quotas enforced for plan.
func LimitsFor(plan inventory.Plan) Limits {
	if plan == inventory.PlanTrial {
		return Limits{MaxSales: 50, MaxCustomers: 20}
	}
	return Limits{}
}
