package log

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldOperation    = "operation"
	FieldError        = "error"
	FieldUserID       = "user_id"
	FieldTable        = "table"
	FieldRow          = "row"
	FieldAmount       = "amount_kopecks"
	FieldBalance      = "balance_kopecks"
	FieldCurrency     = "currency"
	FieldCategory     = "category"
	FieldGoal         = "goal_name"
	FieldBudget       = "budget_category"
	FieldPeriod       = "period"
	FieldSubscription = "subscription_name"
	FieldDueDate      = "due_date"
	FieldCount        = "count"
	FieldDuration     = "duration_ms"
	FieldBackend      = "backend"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentLedger  = "ledger"
	ComponentTabular = "tabular"
	ComponentSweep   = "sweep"
	ComponentAMQP    = "amqp"
	ComponentWorker  = "worker"
	ComponentBackend = "backend"
)

// Operations defines standard operation names
const (
	OpAppend    = "append"
	OpScan      = "scan"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpRecalc    = "recalculate"
	OpMigrate   = "migrate"
	OpSweep     = "sweep"
	OpNotify    = "notify"
	OpStartup   = "startup"
	OpShutdown  = "shutdown"
)
