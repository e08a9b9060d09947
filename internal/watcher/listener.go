package watcher

// Listener observes the controller. Calls arrive on the parser goroutine,
// and on the caller's goroutine for Navigate.
type Listener interface {
	// OnMessage receives a human readable notification.
	OnMessage(msg string)
	// OnProgress reports changes of the in-progress flag.
	OnProgress(inProgress bool)
}

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Message  func(msg string)
	Progress func(inProgress bool)
}

func (l ListenerFuncs) OnMessage(msg string) {
	if l.Message != nil {
		l.Message(msg)
	}
}

func (l ListenerFuncs) OnProgress(inProgress bool) {
	if l.Progress != nil {
		l.Progress(inProgress)
	}
}

// MultiListener fans out to every listener in order.
type MultiListener []Listener

func (m MultiListener) OnMessage(msg string) {
	for _, l := range m {
		l.OnMessage(msg)
	}
}

func (m MultiListener) OnProgress(inProgress bool) {
	for _, l := range m {
		l.OnProgress(inProgress)
	}
}
