package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sucicfilip/ruby-lsp-rails/internal/core/errors"
)

// Request is a single runtime query sent to the runner process.
type Request struct {
	ID     string         `json:"id"`
	Method string         `json:"method"`
	Params map[string]any `json:"params,omitempty"`
}

// Response is the runner's answer to a Request with the same ID.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("runner error %d: %s", e.Code, e.Message)
}

// Runner query methods.
const (
	MethodResolveAssociation      = "resolve_association"
	MethodResolveRouteHelper      = "resolve_route_helper"
	MethodResolveControllerAction = "resolve_controller_action"
)

// WriteMessage frames a message with a Content-Length header and
// writes it to w.
func WriteMessage(w io.Writer, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode runner message")
	}
	if _, err := fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(payload)); err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

// ReadMessage reads one Content-Length framed message from r and
// decodes it into msg.
func ReadMessage(r *bufio.Reader, msg any) error {
	contentLength := -1
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return errors.New(errors.CodeValidationError, "malformed runner header: "+line)
		}
		if strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			contentLength, err = strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return errors.Wrap(err, errors.CodeValidationError, "invalid Content-Length")
			}
		}
	}
	if contentLength < 0 {
		return errors.New(errors.CodeValidationError, "runner message missing Content-Length")
	}

	payload := make([]byte, contentLength)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, msg); err != nil {
		return errors.Wrap(err, errors.CodeValidationError, "failed to decode runner message")
	}
	return nil
}
