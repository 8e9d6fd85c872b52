package workflow

import "errors"

// NonRetriableError marks a permanent failure. The engine does not spend retry
// budget on it and the activation stops.
type NonRetriableError struct {
	Msg string
}

func (e *NonRetriableError) Error() string {
	return e.Msg
}

// NonRetriable builds a NonRetriableError.
func NonRetriable(msg string) error {
	return &NonRetriableError{Msg: msg}
}

// IsNonRetriable reports whether err carries a NonRetriableError.
func IsNonRetriable(err error) bool {
	var nr *NonRetriableError
	return errors.As(err, &nr)
}

// notificationError wraps a notifier failure so the intake workflow can treat
// it as best-effort once retries are spent.
type notificationError struct {
	err error
}

func (e *notificationError) Error() string {
	return "send notification: " + e.err.Error()
}

func (e *notificationError) Unwrap() error {
	return e.err
}

// reportMessage is the error string surfaced in an activation Result.
func reportMessage(err error) string {
	var nr *NonRetriableError
	if errors.As(err, &nr) {
		return nr.Msg
	}
	return err.Error()
}
