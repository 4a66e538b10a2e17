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
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldUserID      = "user_id"
	FieldCategory    = "category"
	FieldAmountCents = "amount_cents"
	FieldXP          = "xp"
	FieldLevel       = "level"
	FieldExpenseID   = "expense_id"
	FieldEventKind   = "event_kind"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentHTTP    = "http"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentCoach   = "coach"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpRead     = "read"
	OpUpdate   = "update"
	OpAppend   = "append"
	OpPublish  = "publish"
	OpConsume  = "consume"
	OpChat     = "chat"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
