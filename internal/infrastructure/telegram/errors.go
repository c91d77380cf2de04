package telegram

import (
	"context"
	"net"
	"net/http"
	"strings"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/pkg/errors"

	"github.com/iamwavecut/ngmod/internal/moderation"
)

var (
	alreadyInStateMarkers = []string{
		"already restricted",
		"not restricted",
		"user is already",
		"member is already",
		"user_not_banned",
		"not banned",
	}
	notFoundMarkers = []string{
		"user not found",
		"member not found",
		"participant_id_invalid",
		"user_not_participant",
		"user_id_invalid",
		"message to delete not found",
	}
)

// classifyAPIError maps Bot API failures onto the moderation failure taxonomy. Status codes
// decide first; descriptions only refine client errors.
func classifyAPIError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return moderation.NewPlatformError(moderation.PlatformTransient, op, err)
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return moderation.NewPlatformError(moderation.PlatformTransient, op, err)
		}
		description := strings.ToLower(apiErr.Message)
		switch {
		case containsAny(description, alreadyInStateMarkers):
			return moderation.NewPlatformError(moderation.PlatformAlreadyInState, op, err)
		case containsAny(description, notFoundMarkers):
			return moderation.NewPlatformError(moderation.PlatformNotFound, op, err)
		}
		return moderation.NewPlatformError(moderation.PlatformRejected, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return moderation.NewPlatformError(moderation.PlatformTransient, op, err)
	}
	return moderation.NewPlatformError(moderation.PlatformRejected, op, err)
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
