package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// APIError is a non-success response from the Jira API. It keeps the raw
// body so callers never need a second round-trip to learn what went wrong.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
	Response   *models.ErrorResponse
}

func newAPIError(method, url string, statusCode int, body []byte) *APIError {
	apiErr := &APIError{
		Method:     method,
		URL:        url,
		StatusCode: statusCode,
		Status:     http.StatusText(statusCode),
		Body:       string(body),
	}
	var errorResp models.ErrorResponse
	if len(body) > 0 && json.Unmarshal(body, &errorResp) == nil {
		apiErr.Response = &errorResp
	}
	return apiErr
}

// Error implements error
func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d %s) %s %s: %s", e.StatusCode, e.Status, e.Method, e.URL, strings.TrimSpace(e.Body))
}

// Messages formats the parsed Jira error messages, falling back to the raw body
func (e *APIError) Messages() string {
	if e.Response == nil {
		return strings.TrimSpace(e.Body)
	}

	var messages []string
	if len(e.Response.ErrorMessages) > 0 {
		messages = append(messages, strings.Join(e.Response.ErrorMessages, "; "))
	}

	if len(e.Response.Errors) > 0 {
		fields := make([]string, 0, len(e.Response.Errors))
		for field := range e.Response.Errors {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		for _, field := range fields {
			messages = append(messages, fmt.Sprintf("%s: %s", field, e.Response.Errors[field]))
		}
	}

	if len(messages) == 0 {
		return strings.TrimSpace(e.Body)
	}
	return strings.Join(messages, "; ")
}

// FieldError returns the Jira validation message for one field, if any
func (e *APIError) FieldError(field string) string {
	if e.Response == nil {
		return ""
	}
	return e.Response.Errors[field]
}

// StatusCodeOf returns the HTTP status carried by err, or 0
func StatusCodeOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// ValidateCredentials validates the API credentials by calling the /myself endpoint
func (c *Client) ValidateCredentials(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.Get(ctx, FamilyCore, "/myself", nil, &user); err != nil {
		return nil, fmt.Errorf("failed to validate credentials: %w", err)
	}
	return &user, nil
}

// getAuthHeader returns the Basic Auth header value
func (c *Client) getAuthHeader() string {
	credentials := fmt.Sprintf("%s:%s", c.Email, c.APIToken)
	encoded := base64.StdEncoding.EncodeToString([]byte(credentials))
	return fmt.Sprintf("Basic %s", encoded)
}
