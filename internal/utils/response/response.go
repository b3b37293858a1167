// Package response defines the JSON envelope every handler replies with.
package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

type Response struct {
	Status  string      `json:"status"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	return json.NewEncoder(w).Encode(data)
}

func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// ValidationError flattens validator failures into one readable error
// string, phrased per tag so clients see what to fix.
func ValidationError(errs validator.ValidationErrors) Response {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		switch err.Tag() {
		case "required":
			messages = append(messages, fmt.Sprintf("%s is required", err.Field()))
		case "oneof":
			messages = append(messages, fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param()))
		case "min":
			messages = append(messages, fmt.Sprintf("%s must be at least %s", err.Field(), err.Param()))
		case "max":
			messages = append(messages, fmt.Sprintf("%s must be at most %s", err.Field(), err.Param()))
		default:
			messages = append(messages, fmt.Sprintf("%s failed %s validation", err.Field(), err.Tag()))
		}
	}

	return Response{
		Status: StatusError,
		Error:  strings.Join(messages, "; "),
	}
}

func RequestOK(message string, data interface{}) Response {
	return Response{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	}
}
