package assistant

import "fmt"

// NotAuthorizedError rejects a first-contact user who is not on the admin
// allow-list. Its message is shown to the user verbatim.
type NotAuthorizedError struct {
	UserID string
}

func (e *NotAuthorizedError) Error() string {
	return fmt.Sprintf("Do I know you? #%s", e.UserID)
}

// RunFailedError is the terminal failure of one orchestration attempt. The
// poisoned thread has already been replaced by the time callers see it.
type RunFailedError struct {
	Status RunStatus
}

func (e *RunFailedError) Error() string {
	return "Something went wrong, please try again later."
}
