package llm

// ErrorKind classifies a failed upstream call.
type ErrorKind int

const (
	KindMissingKey ErrorKind = iota
	KindAuth
	KindRateLimited
	KindUnavailable
	KindTimeout
	KindConnection
	KindUpstream
)

// UpstreamError is the single error type surfaced by Complete. Status is
// zero when the failure happened before an HTTP status was received.
type UpstreamError struct {
	Kind   ErrorKind
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	msg := e.message()
	if e.Err == nil {
		return msg
	}
	return msg + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func (e *UpstreamError) message() string {
	switch e.Kind {
	case KindMissingKey:
		return "llm: no API key is configured"
	case KindAuth:
		return "llm: the API key was rejected by the upstream service"
	case KindRateLimited:
		return "llm: the upstream service is rate limiting requests"
	case KindUnavailable:
		return "llm: the upstream service is unavailable"
	case KindTimeout:
		return "llm: the upstream call timed out"
	case KindConnection:
		return "llm: could not reach the upstream service"
	default:
		return "llm: the upstream service returned an unexpected response"
	}
}
