package log

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldRequestID   = "request_id"
	FieldClientIP    = "client_ip"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldStatusCode  = "status_code"
	FieldDuration    = "duration_ms"
	FieldUserAgent   = "user_agent"
	FieldSuccess     = "success"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldDocument    = "document"
	FieldYear        = "year"
	FieldMonth       = "month"
	FieldDescription = "description"
	FieldAmount      = "amount"
	FieldMode        = "mode"
	FieldParty       = "party"
	FieldRow         = "row"
	FieldJobID       = "job_id"
	FieldRecipients  = "recipients"
)

// Components defines standard component names
const (
	ComponentApp        = "app"
	ComponentHTTP       = "http"
	ComponentExpense    = "expense"
	ComponentSettlement = "settlement"
	ComponentRollover   = "rollover"
	ComponentAnalytics  = "analytics"
	ComponentStorage    = "storage"
	ComponentAMQP       = "amqp"
	ComponentWorker     = "worker"
	ComponentScheduler  = "scheduler"
	ComponentSheets     = "sheets"
	ComponentNotify     = "notify"
	ComponentAI         = "ai"
	ComponentCache      = "cache"
	ComponentRateLimit  = "rate_limit"
	ComponentTrace      = "trace"
	ComponentBackend    = "backend"
)

// Operations defines standard operation names
const (
	OpUpsert    = "upsert"
	OpDelete    = "delete"
	OpSettle    = "settle"
	OpRebalance = "rebalance"
	OpClean     = "clean"
	OpCopy      = "copy"
	OpRollover  = "rollover"
	OpSummary   = "summary"
	OpHistory   = "history"
	OpNotify    = "notify"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeCapacity      = "capacity_error"
	ErrorTypeFunds         = "insufficient_funds"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeConflict      = "conflict_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithRequestID adds request ID field
func (f LogFields) WithRequestID(requestID string) LogFields {
	f[FieldRequestID] = requestID
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithExpense adds the fields identifying an expense operation
func (f LogFields) WithExpense(desc, amount, mode string) LogFields {
	f[FieldDescription] = desc
	f[FieldAmount] = amount
	f[FieldMode] = mode
	return f
}

// WithMonth adds document and month fields
func (f LogFields) WithMonth(document string, month int) LogFields {
	f[FieldDocument] = document
	f[FieldMonth] = month
	return f
}

// WithHTTPRequest adds HTTP request fields
func (f LogFields) WithHTTPRequest(method, path, userAgent string) LogFields {
	f[FieldMethod] = method
	f[FieldPath] = path
	f[FieldUserAgent] = userAgent
	return f
}

// WithHTTPResponse adds HTTP response fields
func (f LogFields) WithHTTPResponse(statusCode int, durationMs int64, success bool) LogFields {
	f[FieldStatusCode] = statusCode
	f[FieldDuration] = durationMs
	f[FieldSuccess] = success
	return f
}

// ToSlice flattens the fields into slog key/value pairs
func (f LogFields) ToSlice() []any {
	out := make([]any, 0, len(f)*2)
	for k, v := range f {
		out = append(out, k, v)
	}
	return out
}
