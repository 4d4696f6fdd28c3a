package moya

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Response is a completed response, either from the transport or a stub.
type Response struct {
	StatusCode int
	Data       []byte
	// Request is the resolved request that produced the response.
	Request *http.Request
	// HTTPResponse is the raw transport response; nil for stubbed responses.
	// Its Body has been read into Data and replaced with http.NoBody. Data is
	// the body every caller of a coalesced request sees.
	HTTPResponse *http.Response
}

func (r *Response) String() string {
	return fmt.Sprintf("Status Code: %d, Data Length: %d", r.StatusCode, len(r.Data))
}

// FilterStatusCodes returns r when its status code is within [min, max], and
// an ErrorTypeStatusCode error otherwise.
func (r *Response) FilterStatusCodes(min, max int) (*Response, error) {
	if r.StatusCode < min || r.StatusCode > max {
		return nil, newResponseError(ErrorTypeStatusCode,
			fmt.Sprintf("status code %d outside %d-%d", r.StatusCode, min, max), nil, r)
	}
	return r, nil
}

// FilterStatusCode returns r when its status code equals code.
func (r *Response) FilterStatusCode(code int) (*Response, error) {
	return r.FilterStatusCodes(code, code)
}

// FilterSuccessfulStatusCodes keeps 2xx responses.
func (r *Response) FilterSuccessfulStatusCodes() (*Response, error) {
	return r.FilterStatusCodes(200, 299)
}

// FilterSuccessfulStatusAndRedirectCodes keeps 2xx and 3xx responses.
func (r *Response) FilterSuccessfulStatusAndRedirectCodes() (*Response, error) {
	return r.FilterStatusCodes(200, 399)
}

// MapJSON unmarshals the response data into v.
func (r *Response) MapJSON(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return newResponseError(ErrorTypeJSONMapping, "cannot decode response as JSON", err, r)
	}
	return nil
}

// MapString returns the response data as a UTF-8 string.
func (r *Response) MapString() (string, error) {
	if !utf8.Valid(r.Data) {
		return "", newResponseError(ErrorTypeStringMapping, "response data is not valid UTF-8", nil, r)
	}
	return string(r.Data), nil
}

// MapStringAtKeyPath decodes the data as JSON and returns the string found at
// keyPath, for example "user.login" or "$.items[0].name".
func (r *Response) MapStringAtKeyPath(keyPath string) (string, error) {
	value, err := r.valueAtKeyPath(keyPath)
	if err != nil {
		return "", newResponseError(ErrorTypeStringMapping, "cannot read key path", err, r)
	}
	s, ok := value.(string)
	if !ok {
		return "", newResponseError(ErrorTypeStringMapping,
			fmt.Sprintf("value at %q is %T, not a string", keyPath, value), nil, r)
	}
	return s, nil
}

// MapJSONAtKeyPath decodes the value found at keyPath into v.
func (r *Response) MapJSONAtKeyPath(keyPath string, v any) error {
	value, err := r.valueAtKeyPath(keyPath)
	if err != nil {
		return newResponseError(ErrorTypeJSONMapping, "cannot read key path", err, r)
	}
	data, err := json.Marshal(value)
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return newResponseError(ErrorTypeJSONMapping, "cannot decode value at key path", err, r)
	}
	return nil
}

func (r *Response) valueAtKeyPath(keyPath string) (any, error) {
	var data any
	if err := oj.Unmarshal(r.Data, &data); err != nil {
		return nil, err
	}
	if !strings.HasPrefix(keyPath, "$") {
		keyPath = "$." + keyPath
	}
	expr, err := jp.ParseString(keyPath)
	if err != nil {
		return nil, err
	}
	results := expr.Get(data)
	if len(results) == 0 {
		return nil, fmt.Errorf("no value at %q", keyPath)
	}
	return results[0], nil
}

// Result is the outcome of a request: exactly one of Response and Err is set.
type Result struct {
	Response *Response
	Err      error
}

// Success builds a successful Result.
func Success(resp *Response) Result {
	return Result{Response: resp}
}

// Failure builds a failed Result.
func Failure(err error) Result {
	return Result{Err: err}
}

// IsSuccess reports whether the result carries a response.
func (r Result) IsSuccess() bool {
	return r.Err == nil && r.Response != nil
}

// Unwrap returns the response and error pair.
func (r Result) Unwrap() (*Response, error) {
	return r.Response, r.Err
}

// convertResponse maps a raw transport outcome onto a Result. An error always
// wins; otherwise both a response and a body are required.
func convertResponse(resp *http.Response, body []byte, err error) Result {
	switch {
	case err != nil:
		return Failure(Underlying(err))
	case resp != nil && body != nil:
		return Success(&Response{
			StatusCode:   resp.StatusCode,
			Data:         body,
			Request:      resp.Request,
			HTTPResponse: resp,
		})
	default:
		return Failure(&Error{
			Type:    ErrorTypeUnknownOutcome,
			Message: "transport returned neither an error nor a complete response",
			Cause:   ErrUnknownOutcome,
		})
	}
}
