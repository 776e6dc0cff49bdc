package log

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldUserID     = "user_id"
	FieldExpenseID  = "expense_id"
	FieldKey        = "key"
	FieldCount      = "count"
	FieldOperation  = "operation"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldYear       = "year"
	FieldMonth      = "month"
	FieldAmount     = "amount"
	FieldCategory   = "category"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatusCode = "status_code"
	FieldDuration   = "duration_ms"
	FieldBackend    = "backend"
	FieldGeneration = "generation"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentExpenses = "expenses"
	ComponentSession  = "session"
	ComponentStorage  = "storage"
	ComponentAuth     = "auth"
	ComponentAMQP     = "amqp"
	ComponentExport   = "export"
	ComponentCLI      = "cli"
)

// Operations defines standard operation names
const (
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpLoad     = "load"
	OpSave     = "save"
	OpLogin    = "login"
	OpSignup   = "signup"
	OpLogout   = "logout"
	OpRestore  = "restore"
	OpProfile  = "profile"
	OpExport   = "export"
	OpActivate = "activate"
)

// ErrorTypes mirrors the error taxonomy for log filtering
const (
	ErrorTypeValidation = "validation_error"
	ErrorTypeAuth       = "auth_error"
	ErrorTypeNotFound   = "not_found_error"
	ErrorTypeStorage    = "storage_error"
	ErrorTypeNetwork    = "network_error"
	ErrorTypeInternal   = "internal_error"
)
