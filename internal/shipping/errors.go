package shipping

// These constants mirror domain error codes to avoid circular imports.
// The handler layer maps these to HTTP status codes.
const (
	codeInvalid     = "invalid"
	codeUnavailable = "unavailable" // For service-level errors like no rates
)

// ShippingError represents a shipping-specific error with a code and message.
type ShippingError struct {
	Code    string
	Message string
}

func (e *ShippingError) Error() string {
	return e.Message
}

// ErrorCode returns the error code for HTTP status mapping.
func (e *ShippingError) ErrorCode() string {
	return e.Code
}

func newShippingError(code, message string) *ShippingError {
	return &ShippingError{Code: code, Message: message}
}

var (
	// ErrNoRates is returned when no shipping rates are available.
	ErrNoRates = newShippingError(codeUnavailable, "No shipping rates available")

	// ErrUnknownRate is returned when the requested shipping method is not offered.
	ErrUnknownRate = newShippingError(codeInvalid, "Shipping method not available")

	// ErrNegativeSubtotal is returned when a quote is requested for a negative amount.
	ErrNegativeSubtotal = newShippingError(codeInvalid, "Subtotal must not be negative")

	// ErrUnsupportedCountry is returned for destinations outside the UK.
	ErrUnsupportedCountry = newShippingError(codeInvalid, "We only ship to UK addresses")
)
