package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oscelab/osce-backend/internal/apperr"
	"github.com/oscelab/osce-backend/internal/response"
	"github.com/rs/zerolog"
)

// failFromError translates an engine error into the API envelope. Kind-tagged
// errors map onto stable status codes and error codes; anything untagged is a
// server fault and gets logged.
func failFromError(c *gin.Context, err error, log zerolog.Logger) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	switch e.Kind {
	case apperr.KindValidation:
		if e.Field != "" {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation,
				map[string]string{e.Field: e.Message})
			return
		}
		response.FailWithMessage(c, http.StatusBadRequest, response.ErrValidation, e.Message)
	case apperr.KindPrecondition:
		response.FailWithMessage(c, http.StatusConflict, response.ErrStartNotReady, e.Message)
	case apperr.KindInvalidState:
		response.FailWithMessage(c, http.StatusConflict, response.ErrInvalidStationState, e.Message)
	case apperr.KindConflict:
		response.FailWithMessage(c, http.StatusConflict, response.ErrConflict, e.Message)
	case apperr.KindNotFound:
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case apperr.KindUnavailable:
		response.FailWithMessage(c, http.StatusServiceUnavailable, response.ErrEvaluationFailed, e.Message)
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Unhandled error kind")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
