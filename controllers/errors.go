package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cppla/learnsprint/middleware"
	"github.com/cppla/learnsprint/services"
	"github.com/cppla/learnsprint/utils"
)

func getUserID(ctx *gin.Context) (string, bool) {
	return middleware.UserID(ctx)
}

// fail maps a service error onto a status and an application code of the form <status><suffix>.
// Validation messages are returned as is; everything else gets a generic message and a log line.
func fail(ctx *gin.Context, log *zap.Logger, err error, suffix int, what string) {
	status := http.StatusInternalServerError
	message := "failed to " + what
	switch {
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "sprint not found"
	case errors.Is(err, services.ErrGeneration):
		// malformed model output is a generation failure, not the caller's fault
		status, message = http.StatusBadGateway, "generation failed, please retry"
	case errors.Is(err, services.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.Error(what, zap.String("path", ctx.FullPath()), zap.Error(err))
	} else {
		log.Debug(what, zap.String("path", ctx.FullPath()), zap.Error(err))
	}
	utils.Error(ctx, status, status*100+suffix, message)
}
