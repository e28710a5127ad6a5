package log

// Field names shared by every log line.
const (
	FieldComponent     = "component"
	FieldRequestID     = "request_id"
	FieldClientIP      = "client_ip"
	FieldMethod        = "method"
	FieldPath          = "path"
	FieldQuery         = "query"
	FieldStatusCode    = "status_code"
	FieldDuration      = "duration_ms"
	FieldUserAgent     = "user_agent"
	FieldReferer       = "referer"
	FieldSuccess       = "success"
	FieldError         = "error"
	FieldOperation     = "operation"
	FieldTaskID        = "task_id"
	FieldClientID      = "client_id"
	FieldAmountCents   = "amount_cents"
	FieldPaidCents     = "paid_cents"
	FieldOrphanedTasks = "orphaned_tasks"
	FieldEventType     = "event_type"
	FieldPreset        = "preset"
)

// Component names, one per package that logs.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentLedger    = "ledger"
	ComponentRegistry  = "registry"
	ComponentReport    = "report"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentSheets    = "sheets"
	ComponentScheduler = "scheduler"
	ComponentBackend   = "backend"
	ComponentCache     = "cache"
)

// Operations logged outside request handling.
const (
	OpDigest   = "digest"
	OpShutdown = "shutdown"
)
