package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/gitlabassist/pkg/models"
)

// kindForStatus maps an HTTP status onto the failure taxonomy. body is used
// to spot "already exists" answers that GitLab sends as 400.
func kindForStatus(status int, body string) models.ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return models.KindNotFound
	case status == http.StatusConflict:
		return models.KindConflict
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(body), "already exists"):
		return models.KindConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return models.KindPermissionDenied
	case status == http.StatusTooManyRequests || status == http.StatusRequestTimeout || status >= 500:
		return models.KindTransient
	case status >= 400:
		return models.KindInvalid
	}
	return models.KindTransient
}

// classify wraps a client-go failure. Responses without a status (network
// errors, deadlines) are transient.
func classify(op string, resp *gitlab.Response, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return models.NewError(models.KindTransient, op, err)
	}

	message := err.Error()
	var errResp *gitlab.ErrorResponse
	if errors.As(err, &errResp) && errResp.Message != "" {
		message = errResp.Message
	}

	if resp == nil || resp.Response == nil {
		if errResp != nil && errResp.Response != nil {
			return models.NewError(kindForStatus(errResp.Response.StatusCode, message), op, errors.New(message))
		}
		return models.NewError(models.KindTransient, op, err)
	}
	return models.NewError(kindForStatus(resp.StatusCode, message), op, fmt.Errorf("%d: %s", resp.StatusCode, message))
}
