// Package gqlrequest decodes GraphQL HTTP payloads once per request and
// derives the metadata middleware needs: operation type, name, depth and hash.
package gqlrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

// Envelope is the decoded GraphQL payload of an HTTP request.
type Envelope struct {
	Method        string
	Query         string
	OperationName string
	VariableCount int
	Size          int
}

type postBody struct {
	Query         string                     `json:"query"`
	OperationName string                     `json:"operationName"`
	Variables     map[string]json.RawMessage `json:"variables"`
}

// DecodeEnvelope reads the GraphQL payload from r. POST bodies are rewound
// so the GraphQL handler can read them again.
func DecodeEnvelope(r *http.Request) (Envelope, error) {
	if r == nil {
		return Envelope{}, errors.New("nil request")
	}
	env := Envelope{Method: r.Method}

	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		env.Query = q.Get("query")
		env.OperationName = q.Get("operationName")
	case http.MethodPost:
		if r.Body == nil {
			return env, nil
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return env, err
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "application/graphql" {
			env.Query = string(body)
			break
		}
		body = bytes.TrimSpace(body)
		if len(body) == 0 {
			break
		}
		var payload postBody
		if err := json.Unmarshal(body, &payload); err != nil {
			return env, err
		}
		env.Query = payload.Query
		env.OperationName = payload.OperationName
		env.VariableCount = len(payload.Variables)
	}

	env.Size = len(env.Query)
	return env, nil
}
