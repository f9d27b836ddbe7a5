package ports

import "net/http"

// HTTPClient abstracts outbound HTTP so pushers can be tested with fakes.
// The standard *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}
