// Package notifyapi exposes POST /notifications, through which backend
// services publish topic notifications to connected relay clients.
package notifyapi

import (
	"encoding/json"
	"net/http"
	"strings"

	junoauth "github.com/SwiftAkira/JunoKit-sub000/juno-auth"
	junorest "github.com/SwiftAkira/JunoKit-sub000/juno-rest"
	"github.com/SwiftAkira/JunoKit-sub000/juno-ws/publish"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxBody bounds notification requests.
const maxBody = 128 << 10

type API struct {
	Verifier junoauth.Verifier
	Sink     publish.Sink
}

type notificationRequest struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

type notificationResponse struct {
	Status string `json:"status"`
	Topic  string `json:"topic"`
}

func (a *API) Routes(r chi.Router) chi.Router {
	r.Post("/notifications", a.postNotification)
	return r
}

func (a *API) postNotification(w http.ResponseWriter, req *http.Request) {
	logger := zerolog.Ctx(req.Context())

	if !a.authorized(req) {
		junorest.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body notificationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBody)).Decode(&body); err != nil {
		junorest.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	body.Topic = strings.TrimSpace(body.Topic)
	if body.Topic == "" {
		junorest.WriteError(w, http.StatusBadRequest, "topic is required")
		return
	}

	err := a.Sink.Publish(req.Context(), publish.Envelope{Topic: body.Topic, Payload: body.Payload})
	switch {
	case err != nil:
		logger.Error().Err(err).Str("topic", body.Topic).Msg("failed to publish notification")
		junorest.WriteError(w, http.StatusInternalServerError, "failed to publish notification")
	default:
		logger.Info().Str("topic", body.Topic).Msg("notification accepted")
		junorest.WriteJSON(w, http.StatusAccepted, notificationResponse{Status: "accepted", Topic: body.Topic})
	}
}

func (a *API) authorized(req *http.Request) bool {
	token := strings.TrimSpace(strings.TrimPrefix(req.Header.Get("Authorization"), "Bearer "))
	if token == "" || a.Verifier == nil {
		return false
	}
	claims, err := a.Verifier.Verify(req.Context(), token)
	return err == nil && claims.Subject != ""
}
