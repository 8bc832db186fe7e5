package relay

import (
	"errors"

	"github.com/aws/smithy-go"

	"github.com/zhouzirui/connect-chat/backend/internal/model/chat"
)

// asProviderError converts an upstream failure into a *chat.ProviderError, keeping
// the API error code and message when the provider supplied them.
func asProviderError(op string, err error) error {
	if err == nil {
		return nil
	}

	var pe *chat.ProviderError
	if errors.As(err, &pe) {
		if pe.Op == "" {
			pe.Op = op
		}
		return pe
	}

	out := &chat.ProviderError{Op: op, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		out.Code = apiErr.ErrorCode()
		out.Message = apiErr.ErrorMessage()
	}
	return out
}
