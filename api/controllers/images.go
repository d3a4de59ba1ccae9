package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/angelmondragon/rentchain-properties/api/responses"
	"github.com/angelmondragon/rentchain-properties/api/validators"
	"github.com/angelmondragon/rentchain-properties/internal/rooms"
	pkgerrors "github.com/angelmondragon/rentchain-properties/pkg/errors"
	"github.com/angelmondragon/rentchain-properties/pkg/logger"
)

const (
	uploadField = "file"
	// multipartOverhead covers boundaries and part headers around the file.
	multipartOverhead = 1 << 20
)

// UploadImage accepts one multipart file under "file" and an optional "orderIndex".
func UploadImage(svc rooms.Service, maxBytes int64, logg *logger.Logger) http.HandlerFunc {
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

		input, err := readUpload(w, r, maxBytes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRoomID(ctx, roomID.String())
		}
		img, err := svc.UploadImage(ctx, roomID, input, principal.OwnerAddress)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, img)
	}
}

func readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (rooms.UploadInput, error) {
	var input rooms.UploadInput
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "file too large").WithDetails(map[string]any{"maxBytes": maxBytes})
		}
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart body")
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").WithDetails(map[string]string{uploadField: "is required"})
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return input, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload")
	}
	input.Filename = header.Filename
	input.Data = data

	if raw := strings.TrimSpace(r.FormValue("orderIndex")); raw != "" {
		order, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return input, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"orderIndex": "must be an integer"})
		}
		input.OrderIndex = &order
	}
	return input, nil
}

func ListImages(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
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
		list, err := svc.ListImages(r.Context(), roomID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if list == nil {
			list = []rooms.ImageDTO{}
		}
		responses.WriteSuccess(w, list)
	}
}

func GetImage(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		imageID, err := validators.PathUUID(r, "imageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		img, err := svc.GetImage(r.Context(), imageID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, img)
	}
}

func ReorderImage(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		imageID, err := validators.PathUUID(r, "imageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input rooms.ReorderImageInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		img, err := svc.ReorderImage(r.Context(), imageID, input.OrderIndex, principal.OwnerAddress)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, img)
	}
}

func DeleteImage(svc rooms.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "room service unavailable"))
			return
		}
		principal, ok := requirePrincipal(w, r, logg)
		if !ok {
			return
		}
		imageID, err := validators.PathUUID(r, "imageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteImage(r.Context(), imageID, principal.OwnerAddress); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
