package handlers

import (
	"net/http"

	"github.com/upb/llm-gateway/services"
	"github.com/upb/llm-gateway/utils"
	"go.uber.org/zap"
)

// kindStatus is the exhaustive translation table from gateway error kinds to
// HTTP status codes. Backend errors are absent on purpose: they carry the
// upstream's own status and pass it through unchanged.
var kindStatus = map[services.ErrorKind]int{
	services.ErrorKindUnknownModel:   http.StatusNotFound,
	services.ErrorKindInvalidRequest: http.StatusBadRequest,
	services.ErrorKindTransport:      http.StatusBadGateway,
	services.ErrorKindNotFound:       http.StatusNotFound,
	services.ErrorKindForbidden:      http.StatusForbidden,
	services.ErrorKindInternal:       http.StatusInternalServerError,
}

// WriteServiceError translates a service failure into its HTTP response. No
// fault path falls through: foreign error types land in the 502 class so the
// caller can always distinguish "the model rejected this" from "the gateway
// could not reach the model".
func WriteServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	gwErr, ok := services.AsGatewayError(err)
	if !ok {
		logger.Error("unclassified error reached the translator", zap.Error(err))
		_ = utils.WriteError(w, http.StatusBadGateway, string(services.ErrorKindTransport), err.Error())
		return
	}

	if gwErr.Kind == services.ErrorKindBackend {
		// preserve the backend's own status code semantics
		_ = utils.WriteError(w, gwErr.Status, string(gwErr.Kind), gwErr.Message)
		return
	}

	status, ok := kindStatus[gwErr.Kind]
	if !ok {
		status = http.StatusBadGateway
	}
	_ = utils.WriteError(w, status, string(gwErr.Kind), gwErr.Message)
}

// WriteValidationError translates payload validation failures into 400s
func WriteValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}
