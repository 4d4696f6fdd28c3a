package main

import (
	"fmt"
	"strings"

	"github.com/pixyzehn/Moya"
)

// cliTarget is a target assembled from command line flags.
type cliTarget struct {
	name       string
	url        string
	method     moya.Method
	parameters map[string]any
	headers    map[string]string
	json       bool
	sample     []byte
}

func (t cliTarget) BaseURL() string { return t.url }
func (t cliTarget) Path() string { return "" }
func (t cliTarget) Method() moya.Method { return t.method }
func (t cliTarget) Parameters() map[string]any { return t.parameters }
func (t cliTarget) SampleData() []byte { return t.sample }
func (t cliTarget) Headers() map[string]string { return t.headers }
func (t cliTarget) Name() string { return t.name }

func (t cliTarget) ParameterEncoding() moya.ParameterEncoding {
	if t.json {
		return moya.JSONEncoding{}
	}
	return moya.URLEncoding{}
}

// parsePairs splits key=value (or key:value for headers) arguments.
func parsePairs(pairs []string, sep string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, sep)
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key%svalue, got %q", sep, pair)
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}
