package notify

import "fmt"

// maxErrorBodyLen bounds how much of a rejection body is kept in error
// details and dead-letter records.
const maxErrorBodyLen = 200

// RemoteRejection is a non-2xx response from a delivery target
type RemoteRejection struct {
	StatusCode int
	Body       string
}

func (e *RemoteRejection) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Body)
}

// NewRemoteRejection builds a rejection error, truncating the body
func NewRemoteRejection(statusCode int, body []byte) *RemoteRejection {
	s := string(body)
	if len(s) > maxErrorBodyLen {
		s = s[:maxErrorBodyLen]
	}
	return &RemoteRejection{StatusCode: statusCode, Body: s}
}

// TransportError is a failure to complete the HTTP exchange at all
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
