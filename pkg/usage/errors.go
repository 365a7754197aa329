package usage

import "errors"

// ErrUserNotFound is returned when the user id does not exist.
var ErrUserNotFound = errors.New("user not found")

// Messages carried in result objects.
const (
	DownloadLimitReached = "Download limit reached"
	DownloadFailed       = "Failed to record download"
	ProResetNotNeeded    = "Pro users do not need usage reset"
)
