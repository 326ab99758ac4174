package core

// Notifier is an interface to receive database change notifications
type Notifier interface {
	Notify(resource string, operation Operation, payload []byte)
}
