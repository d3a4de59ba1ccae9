package controllers

import (
	"net/http"

	"github.com/angelmondragon/rentchain-properties/api/responses"
	"github.com/angelmondragon/rentchain-properties/api/validators"
	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

func CreateRoom(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		propertyID, err := validators.PathUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input rooms.CreateRoomInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		room, err := svc.CreateRoom(r.Context(), propertyID, input, principal.OwnerAddress)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, room)
	}
}

func ListRooms(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		propertyID, err := validators.PathUUID(r, "propertyId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListRooms(r.Context(), propertyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []rooms.RoomDTO{}
		}
		responses.WriteSuccess(w, list)
	}
}

func GetRoom(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		roomID, err := validators.PathUUID(r, "roomId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		room, err := svc.GetRoom(r.Context(), roomID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, room)
	}
}

func UpdateRoom(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		roomID, err := validators.PathUUID(r, "roomId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input rooms.UpdateRoomInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRoomID(ctx, roomID.String())
		}
		room, err := svc.UpdateRoom(ctx, roomID, input, principal.OwnerAddress)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, room)
	}
}

// DeleteRoom removes the room with all of its images and their blobs.
func DeleteRoom(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		roomID, err := validators.PathUUID(r, "roomId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRoomID(ctx, roomID.String())
		}
		if err := svc.DeleteRoom(ctx, roomID, principal.OwnerAddress); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
