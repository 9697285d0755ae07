package routing

import (
	"errors"
	"fmt"
)

// BudgetExceededError is returned when a workspace has (near-)zero
// remaining budget. It is raised before any provider call is attempted,
// never after spend has occurred.
type BudgetExceededError struct {
	WorkspaceID string
	Remaining   float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("routing: budget exceeded for workspace %s (remaining $%.2f)", e.WorkspaceID, e.Remaining)
}

// IsBudgetExceeded reports whether the error chain contains a
// BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
