// Package health aggregates the readiness checks of a service and its dependencies.
package health

import (
	"context"
	"encoding/json"
	"net/http"
)

// Check is a named health check. It returns a status code, a message which may itself be a
// JSON health report, and an error when the check could not run.
type Check struct {
	Name  string
	Check func(ctx context.Context, checkLiveness bool) (int, string, error)
}

type dependency struct {
	Resource string          `json:"resource"`
	Status   int             `json:"status"`
	Error    string          `json:"error,omitempty"`
	Message  string          `json:"message,omitempty"`
	Details  json.RawMessage `json:"details,omitempty"`
}

type report struct {
	Status       int          `json:"status"`
	Dependencies []dependency `json:"dependencies"`
}

// CheckAll runs every check and reports 200 only when all of them pass. The JSON report lists
// each check, nesting reports returned by checks of other services.
func CheckAll(ctx context.Context, checkLiveness bool, checks []Check) (int, string, error) {
	r := report{
		Status:       http.StatusOK,
		Dependencies: make([]dependency, 0, len(checks)),
	}

	for _, check := range checks {
		status, message, err := check.Check(ctx, checkLiveness)
		if err != nil || status != http.StatusOK {
			r.Status = http.StatusServiceUnavailable
		}

		dep := dependency{Resource: check.Name, Status: status}

		if err != nil {
			dep.Error = err.Error()
		}

		if len(message) > 0 && message[0] == '{' && json.Valid([]byte(message)) {
			dep.Details = json.RawMessage(message)
		} else {
			dep.Message = message
		}

		r.Dependencies = append(r.Dependencies, dep)
	}

	body, err := json.Marshal(r)
	if err != nil {
		return http.StatusServiceUnavailable, "", err
	}

	return r.Status, string(body), nil
}
