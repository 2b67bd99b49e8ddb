package services

import "github.com/cosmarket/points/utils"

// Notifier is the narrow interface to the platform's notification system.
// Delivery mechanics live outside this service.
type Notifier interface {
	Notify(accountID uint, kind, message string)
}

// LogNotifier emits notifications to the structured log. It stands in until
// the real notification emitter is wired, and doubles as the test default.
type LogNotifier struct{}

// Notify implements Notifier.
func (LogNotifier) Notify(accountID uint, kind, message string) {
	if utils.Sugar != nil {
		utils.Sugar.Infow("notification", "account_id", accountID, "kind", kind, "message", message)
	}
}
