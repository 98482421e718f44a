package upload

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Sentinel errors for upload failures.
var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNetwork          = errors.New("network error")
	ErrUploadInProgress = errors.New("an upload is already in progress")
	ErrCanceled         = errors.New("upload canceled")
	ErrNotFound         = errors.New("object not found")

	// ErrAccessDenied means the store rejected its own configured
	// credentials. Signing in again cannot fix it, so it is a network-class
	// failure.
	ErrAccessDenied = fmt.Errorf("%w: storage credentials rejected", ErrNetwork)
)

// ServiceDisabledError reports that the storage API is not enabled for the
// account. URL, when set, is where the user can enable it.
type ServiceDisabledError struct {
	URL     string
	Message string
}

func (e *ServiceDisabledError) Error() string {
	if e.URL != "" {
		return fmt.Sprintf("storage service disabled: %s (enable at %s)", e.Message, e.URL)
	}
	return "storage service disabled: " + e.Message
}

// APIError is a non-success response that fits no other class.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// Unwrap makes APIError match ErrNetwork.
func (e *APIError) Unwrap() error { return ErrNetwork }

// apiErrorBody is the error envelope returned by Google-style REST APIs.
type apiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
		Details []struct {
			Type     string            `json:"@type"`
			Reason   string            `json:"reason"`
			Metadata map[string]string `json:"metadata"`
		} `json:"details"`
	} `json:"error"`
}

var urlPattern = regexp.MustCompile(`https?://[^\s"']+`)

// disabledPhrases identify a disabled-service message when the response
// carries no structured reason.
var disabledPhrases = []string{
	"has not been used in project",
	"is disabled",
	"accessNotConfigured",
}

// classifyResponse turns a failed response into a classified error.
func classifyResponse(status int, body []byte) error {
	var parsed apiErrorBody
	message := fmt.Sprintf("Upload failed with status %d", status)
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		message = parsed.Error.Message
	}

	for _, d := range parsed.Error.Details {
		if d.Reason == "SERVICE_DISABLED" {
			return &ServiceDisabledError{URL: d.Metadata["activationUrl"], Message: message}
		}
	}
	for _, e := range parsed.Error.Errors {
		if e.Reason == "accessNotConfigured" {
			return &ServiceDisabledError{URL: urlPattern.FindString(message), Message: message}
		}
	}

	if status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %s", ErrUnauthorized, message)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	}

	if status == http.StatusForbidden {
		for _, phrase := range disabledPhrases {
			if strings.Contains(message, phrase) {
				return &ServiceDisabledError{URL: urlPattern.FindString(message), Message: message}
			}
		}
	}

	return &APIError{Status: status, Message: message}
}
