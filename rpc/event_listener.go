package rpc

// EventListener is notified of non-fatal translation events; wire it to
// metrics.
type EventListener interface {
	OnTranslationWarning(reason string)
}

type SelectiveListener struct {
	OnTranslationWarningCb func(reason string)
}

func (l *SelectiveListener) OnTranslationWarning(reason string) {
	if l.OnTranslationWarningCb != nil {
		l.OnTranslationWarningCb(reason)
	}
}
