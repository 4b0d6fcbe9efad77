package model

import "errors"

// Error taxonomy shared by the platform clients. None of these are fatal:
// a failing lookup simply reports 0 for the affected metric on that tick.
var (
	// ErrCredentialsMissing means the feature is disabled by configuration.
	ErrCredentialsMissing = errors.New("credentials missing")
	// ErrNetwork means the request never produced an HTTP response.
	ErrNetwork = errors.New("network failure")
	// ErrUnavailable means the remote answered but not with usable data
	// (non-2xx status, malformed body, missing session prerequisite).
	ErrUnavailable = errors.New("unavailable")
	// ErrNoData means the remote answered with an empty result list.
	ErrNoData = errors.New("no data")
)

// ErrorKind returns a short label for err, suitable for metrics and logs.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCredentialsMissing):
		return "credentials_missing"
	case errors.Is(err, ErrNetwork):
		return "network"
	case errors.Is(err, ErrNoData):
		return "no_data"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
