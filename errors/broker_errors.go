package errors

import "fmt"

// BrokerError is the JSON shape every broker failure is reported in.
type BrokerError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *BrokerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Broker error codes
const (
	MissingParameter = "missing_parameter"
	RedirectConflict = "redirect_conflict"
	ExchangeFailed   = "exchange_failed"
	Unauthorized     = "unauthorized"
	ServerError      = "server_error"
)

// Common error constructors
func NewMissingParameter(name string) *BrokerError {
	return &BrokerError{
		Code:        MissingParameter,
		Description: fmt.Sprintf("query parameter %q is required", name),
	}
}

func NewRedirectConflict(description string) *BrokerError {
	return &BrokerError{
		Code:        RedirectConflict,
		Description: description,
	}
}

func NewExchangeFailed(description string) *BrokerError {
	return &BrokerError{
		Code:        ExchangeFailed,
		Description: description,
	}
}

func NewUnauthorized(description string) *BrokerError {
	return &BrokerError{
		Code:        Unauthorized,
		Description: description,
	}
}

func NewServerError(description string) *BrokerError {
	return &BrokerError{
		Code:        ServerError,
		Description: description,
	}
}
