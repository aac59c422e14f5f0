package services

import "fmt"

// SecurityError is returned when a destructive operation is attempted
// without a valid password confirmation.
type SecurityError struct {
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("security check failed: %s", e.Reason)
}

// ProviderNotConnectedError is returned when an operation needs a
// cloud provider the account has not linked.
type ProviderNotConnectedError struct {
	Provider string
}

func (e *ProviderNotConnectedError) Error() string {
	return fmt.Sprintf("provider %s is not connected", e.Provider)
}
