package moya

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strconv"
)

// ParameterEncoding applies an endpoint's parameters to a freshly built request.
type ParameterEncoding interface {
	Encode(req *http.Request, parameters map[string]any) error
}

// EncodingFunc adapts a function to ParameterEncoding.
type EncodingFunc func(req *http.Request, parameters map[string]any) error

func (f EncodingFunc) Encode(req *http.Request, parameters map[string]any) error {
	return f(req, parameters)
}

// URLEncodingDestination selects where URLEncoding writes parameters.
type URLEncodingDestination int

const (
	// MethodDependent uses the query string for GET, HEAD and DELETE and the
	// body for every other method.
	MethodDependent URLEncodingDestination = iota
	QueryString
	HTTPBody
)

// URLEncoding encodes parameters as a percent-encoded query string.
// Nested maps become key[sub]=v and slices become key[]=v.
type URLEncoding struct {
	Destination URLEncodingDestination
}

func (e URLEncoding) Encode(req *http.Request, parameters map[string]any) error {
	if len(parameters) == 0 {
		return nil
	}

	values := url.Values{}
	keys := sortedKeys(parameters)
	for _, k := range keys {
		for _, c := range queryComponents(k, parameters[k]) {
			values.Add(c[0], c[1])
		}
	}

	if e.inQuery(req.Method) {
		existing := req.URL.Query()
		for k, vs := range values {
			for _, v := range vs {
				existing.Add(k, v)
			}
		}
		req.URL.RawQuery = existing.Encode()
		return nil
	}

	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	}
	setBody(req, []byte(values.Encode()))
	return nil
}

func (e URLEncoding) inQuery(method string) bool {
	switch e.Destination {
	case QueryString:
		return true
	case HTTPBody:
		return false
	}
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodDelete:
		return true
	}
	return false
}

// JSONEncoding writes parameters as a JSON object body.
type JSONEncoding struct{}

func (JSONEncoding) Encode(req *http.Request, parameters map[string]any) error {
	if len(parameters) == 0 {
		return nil
	}
	data, err := json.Marshal(parameters)
	if err != nil {
		return err
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	setBody(req, data)
	return nil
}

func setBody(req *http.Request, data []byte) {
	req.ContentLength = int64(len(data))
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func queryComponents(key string, value any) [][2]string {
	switch v := value.(type) {
	case nil:
		return [][2]string{{key, ""}}
	case string:
		return [][2]string{{key, v}}
	case bool:
		return [][2]string{{key, strconv.FormatBool(v)}}
	case map[string]any:
		var out [][2]string
		for _, k := range sortedKeys(v) {
			out = append(out, queryComponents(key+"["+k+"]", v[k])...)
		}
		return out
	case []any:
		var out [][2]string
		for _, item := range v {
			out = append(out, queryComponents(key+"[]", item)...)
		}
		return out
	case fmt.Stringer:
		return [][2]string{{key, v.String()}}
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		var out [][2]string
		for i := range rv.Len() {
			out = append(out, queryComponents(key+"[]", rv.Index(i).Interface())...)
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		nested := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			nested[iter.Key().String()] = iter.Value().Interface()
		}
		return queryComponents(key, nested)
	}
	return [][2]string{{key, fmt.Sprint(value)}}
}
