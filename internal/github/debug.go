package github

import (
	"net/http"
	"net/http/httputil"

	"github.com/ghmirror/ghmirror/internal/logging"
)

// LoggingTransport is an http.RoundTripper that dumps API requests and
// responses at debug level. Enabled with the --debug-http flag.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *logging.Logger
}

// NewLoggingTransport creates a new LoggingTransport. If transport is
// nil, http.DefaultTransport is used.
func NewLoggingTransport(transport http.RoundTripper, logger *logging.Logger) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip executes a single HTTP transaction, logging the request and response.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		t.Logger.Debugf("error dumping request: %v", err)
	} else {
		t.Logger.Debugf("request:\n%s", string(reqDump))
	}

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.Logger.Debugf("error making request: %v", err)
		return resp, err // Return the response and error, even if the response is nil.
	}

	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		t.Logger.Debugf("error dumping response: %v", err)
	} else {
		t.Logger.Debugf("response:\n%s", string(respDump))
	}

	return resp, nil
}
