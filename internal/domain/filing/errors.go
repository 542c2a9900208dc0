package filing

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrAuthenticationFailed = NewDomainError("AUTHENTICATION_FAILED", "Authentication failed. Please login again.")
	ErrUpstreamRequest      = NewDomainError("UPSTREAM_REQUEST_FAILED", "Upstream server error")
	ErrInvalidReportKind    = NewDomainError("INVALID_REPORT_KIND", "Invalid report type")
	ErrInvalidPeriod        = NewDomainError("INVALID_PERIOD", "Invalid reporting period")
	ErrJobNotFound          = NewDomainError("JOB_NOT_FOUND", "Job not found")
	ErrMissingCredential    = NewDomainError("MISSING_CREDENTIAL", "No token provided")
)
