package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/muster-live/muster/pkg/codes"
	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/network"
	"github.com/muster-live/muster/pkg/repositories"
	"github.com/muster-live/muster/pkg/rooms"
	"github.com/muster-live/muster/pkg/rooms/types"
)

// HandleCreateRoom allocates a coordinator for a fresh random code and
// returns the code. Collisions silently reuse the existing instance.
func HandleCreateRoom(registry *rooms.Registry, codeLength int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := codes.Generate(codeLength)
		registry.GetOrCreate(code)
		log.Debug("allocated room %s", code)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"code": code,
		})
	}
}

// HandleGetState returns the room's public snapshot, tokens stripped.
func HandleGetState(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		snapshot, err := room.Snapshot(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

// HandleJoin creates or updates a member and returns its id and token.
func HandleJoin(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		fields := decodeBody(r)

		result, err := room.Join(r.Context(), types.JoinParams{
			UserID: stringValue(fields, "userId"),
			Name:   stringField(fields, "name"),
			Team:   stringField(fields, "team"),
			Role:   stringField(fields, "role"),
			Health: numberField(fields, "health"),
		})
		if err != nil {
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"ok":     true,
			"userId": result.UserID,
			"token":  result.Token,
		})
	}
}

// HandleLeave removes a member entirely.
func HandleLeave(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		fields := decodeBody(r)

		err := room.Leave(r.Context(), stringValue(fields, "userId"), stringValue(fields, "token"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// HandleLocation replaces a member's location.
func HandleLocation(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		fields := decodeBody(r)

		err := room.UpdateLocation(r.Context(), types.LocationParams{
			UserID: stringValue(fields, "userId"),
			Token:  stringValue(fields, "token"),
			Lat:    numberField(fields, "lat"),
			Lon:    numberField(fields, "lon"),
			TS:     numberField(fields, "ts"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// HandleAbility appends to a member's ability activation log.
func HandleAbility(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		fields := decodeBody(r)

		err := room.ActivateAbility(r.Context(), types.AbilityParams{
			UserID:    stringValue(fields, "userId"),
			Token:     stringValue(fields, "token"),
			AbilityID: stringValue(fields, "abilityId"),
			TS:        numberField(fields, "ts"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// HandleStatus merges a member's team/role/health.
func HandleStatus(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		fields := decodeBody(r)

		err := room.UpdateStatus(r.Context(), types.StatusParams{
			UserID: stringValue(fields, "userId"),
			Token:  stringValue(fields, "token"),
			Team:   stringField(fields, "team"),
			Role:   stringField(fields, "role"),
			Health: numberField(fields, "health"),
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// HandleGetSettings returns the room-scoped settings list.
func HandleGetSettings(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		settings, err := room.GetSettings(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if settings == nil {
			settings = []types.Setting{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"settings": settings,
		})
	}
}

// HandleSetSettings replaces the settings list wholesale. Not
// token-gated: anyone holding the code may set it.
func HandleSetSettings(registry *rooms.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		fields := decodeBody(r)

		var settings []types.Setting
		if raw, ok := fields["settings"]; ok {
			if err := json.Unmarshal(raw, &settings); err != nil {
				settings = nil
			}
		}

		if err := room.SetSettings(r.Context(), settings); err != nil {
			writeError(w, err)
			return
		}
		writeOK(w)
	}
}

// HandleWebSocket upgrades the request to a push channel on the room.
func HandleWebSocket(registry *rooms.Registry, readLimit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := roomFromRequest(registry, r)
		network.ServePushChannel(w, r, room, readLimit)
	}
}

// roomFromRequest resolves the {code} path variable to a coordinator.
// The router's code pattern has already vetted the code format.
func roomFromRequest(registry *rooms.Registry, r *http.Request) *rooms.Room {
	return registry.GetOrCreate(mux.Vars(r)["code"])
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok": true,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response: %v", err)
	}
}

// writeError maps coordinator errors onto the HTTP surface:
// validation 400, authorization 403, missing record 404, anything
// else (store I/O included) 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case types.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"ok":    false,
			"error": err.Error(),
		})
	case types.IsAuthorization(err):
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"ok":    false,
			"error": "unauthorized",
		})
	case repositories.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"ok":    false,
			"error": "not found",
		})
	default:
		log.Error("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"ok":    false,
			"error": "internal error",
		})
	}
}
