package core

// Logger is any service that can log app events.
// expected args fmt: error | map[string]interface{} | Tenant
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Tenant identifies the school a log entry belongs to.
type Tenant struct {
	SchoolID  string
	StudentID string
}
