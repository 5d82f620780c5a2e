package req

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"sql-sandbox/pkg/res"
)

const maxBodyBytes = 1 << 20

// Validator is implemented by payloads that check their own fields.
type Validator interface {
	Validate() error
}

// HandleBody decodes the JSON request body into T and validates it. On
// failure the 400 response has already been written and the error is returned
// so the handler can stop.
func HandleBody[T any](w *http.ResponseWriter, r *http.Request) (*T, error) {
	body, err := Decode[T](http.MaxBytesReader(*w, r.Body, maxBodyBytes))
	if err != nil {
		res.Error(*w, err.Error(), http.StatusBadRequest)
		return nil, err
	}
	if v, ok := any(body).(Validator); ok {
		if err := v.Validate(); err != nil {
			res.Error(*w, err.Error(), http.StatusBadRequest)
			return nil, err
		}
	}
	return body, nil
}

func Decode[T any](body io.Reader) (*T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body is empty")
		}
		return nil, fmt.Errorf("invalid JSON body: %w", err)
	}
	return &payload, nil
}
