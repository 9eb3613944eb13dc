package feishubot

import "fmt"

// CodeCredentialInvalid is the platform status code reserved for a
// tenant access token the platform no longer accepts. The request
// pipeline invalidates the cached credential and retries when it sees
// this code; every other non-zero code is a plain request failure.
//
// Platform error codes: https://open.feishu.cn/document/ukTMukTMukTM/ugjM14COyUjL4ITN
const CodeCredentialInvalid = 99991663

// RequestError is a failure reported by the platform: a non-zero code
// in an otherwise well-formed response envelope.
type RequestError struct {
	Code    int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (code=%d)", e.Message, e.Code)
}

// CredentialExpiredError is the RequestError refinement for the
// reserved credential-invalid code. Refreshing the access token is
// expected to resolve it, so the retry boundary retries this error
// alone. It is matched by type, never by message text: message matching
// misclassifies unrelated failures that happen to mention the token.
type CredentialExpiredError struct {
	RequestError
}

// Unwrap exposes the underlying RequestError to errors.As.
func (e *CredentialExpiredError) Unwrap() error {
	return &e.RequestError
}

// ProtocolError reports a response that could not be decoded as a
// platform envelope, or an envelope missing a field the endpoint is
// documented to return. It is fatal to the call and never retried.
type ProtocolError struct {
	Endpoint string
	Err      error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed response from %s: %v", e.Endpoint, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
