package clusterapi

// Result is the envelope every cluster call returns. IsError is set for any
// non-success status and for transport failures (StatusCode 0); Result is
// then the zero value.
type Result[T any] struct {
    Result       T      `json:"result"`
    IsError      bool   `json:"isError"`
    ErrorMessage string `json:"errorMessage,omitempty"`
    StatusCode   int    `json:"statusCode"`
}

// NotFound reports whether the call failed because the document is absent.
func (r Result[T]) NotFound() bool { return r.IsError && r.StatusCode == 404 }

func failure[T any](status int, msg string) Result[T] {
    if msg == "" { msg = "request failed" }
    return Result[T]{IsError: true, ErrorMessage: msg, StatusCode: status}
}
