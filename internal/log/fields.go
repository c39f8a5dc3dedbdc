package log

// Common field names for structured logging.
const (
	FieldComponent  = "component"
	FieldRequestID  = "request_id"
	FieldClientIP   = "client_ip"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldOperation  = "operation"

	FieldUserID     = "user_id"
	FieldRunID      = "run_id"
	FieldStage      = "stage"
	FieldRunStatus  = "run_status"
	FieldSnapshotID = "snapshot_id"
	FieldRecipient  = "recipient"
	FieldEmailsSent = "emails_sent"
	FieldAITokens   = "ai_tokens"
	FieldModel      = "model"
	FieldBudgetID   = "budget_id"
	FieldMonth      = "month"
	FieldWeekEnding = "week_ending"
)

// Components defines standard component names.
const (
	ComponentApp       = "app"
	ComponentHTTP      = "http"
	ComponentPipeline  = "pipeline"
	ComponentProvider  = "provider"
	ComponentLLM       = "llm"
	ComponentMail      = "mail"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentScheduler = "scheduler"
	ComponentSheets    = "sheets"
	ComponentCache     = "cache"
)

// Operations defines standard operation names.
const (
	OpFetch    = "fetch"
	OpAnalyze  = "analyze"
	OpRender   = "render"
	OpDeliver  = "deliver"
	OpSnapshot = "snapshot"
	OpLogWrite = "log_write"
	OpMirror   = "mirror"
	OpRefresh  = "token_refresh"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)
