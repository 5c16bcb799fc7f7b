package log

// Common field names for structured logging.
const (
	FieldComponent      = "component"
	FieldRequestID      = "request_id"
	FieldClientIP       = "client_ip"
	FieldMethod         = "method"
	FieldPath           = "path"
	FieldStatusCode     = "status_code"
	FieldDuration       = "duration_ms"
	FieldError          = "error"
	FieldOperation      = "operation"
	FieldExpenseID      = "expense_id"
	FieldIdempotencyKey = "idempotency_key"
	FieldAmountPaise    = "amount_paise"
	FieldCategory       = "category"
	FieldExportRef      = "export_ref"
	FieldBatchSize      = "batch_size"
)

// Standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentExpense   = "expense"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentExport    = "export"
	ComponentRateLimit = "rate_limit"
)
