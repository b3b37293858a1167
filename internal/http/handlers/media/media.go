package media

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/careloop/visit-media-service/internal/http/middleware"
	"github.com/careloop/visit-media-service/internal/services/upload"
	"github.com/careloop/visit-media-service/internal/storage"
	"github.com/careloop/visit-media-service/internal/types"
	"github.com/careloop/visit-media-service/internal/utils/response"
)

// UploadService is the slice of the lifecycle controller the handlers use.
type UploadService interface {
	IssueUpload(ctx context.Context, req types.PresignUploadRequest, staffID string) (*types.PresignUploadResponse, error)
	Confirm(ctx context.Context, req types.ConfirmUploadRequest, confirmedBy string) (*upload.ConfirmResult, error)
	GetAudio(ctx context.Context, id, viewerID string) (*types.AudioRecord, error)
	GetPhoto(ctx context.Context, id, viewerID string) (*types.PhotoRecord, error)
	IssueDownload(ctx context.Context, kind types.Kind, id, viewerID string, expirySeconds int) (*types.DownloadURLResponse, error)
	UpdateAudioMetadata(ctx context.Context, id string, req types.UpdateMetadataRequest) (*types.AudioRecord, error)
	UpdatePhotoMetadata(ctx context.Context, id string, req types.UpdateMetadataRequest) (*types.PhotoRecord, error)
	DeleteAudio(ctx context.Context, id string) error
	DeletePhoto(ctx context.Context, id string) error
	ListByVisit(ctx context.Context, visitID string) (*upload.VisitMedia, error)
	ListByPatient(ctx context.Context, patientID string) (*upload.VisitMedia, error)
}

type MediaHandlers struct {
	uploads UploadService
}

// NewMediaHandlers creates a new media handlers instance
func NewMediaHandlers(uploads UploadService) *MediaHandlers {
	return &MediaHandlers{
		uploads: uploads,
	}
}

// writeServiceError maps lifecycle-controller errors onto status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, upload.ErrValidation):
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
	case errors.Is(err, storage.ErrNotFound):
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(err))
	case errors.Is(err, upload.ErrUpstream):
		response.WriteJSON(w, http.StatusBadGateway, response.GeneralError(err))
	default:
		response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
	}
}

// PresignUpload issues a presigned upload URL and creates a pending record
// @Summary Request a presigned upload URL
// @Description Creates a pending media record and returns a presigned URL the client uploads the file bytes to
// @Tags media
// @Accept json
// @Produce json
// @Param request body types.PresignUploadRequest true "Upload request"
// @Success 200 {object} types.PresignUploadResponse "Upload URL issued"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 401 {object} response.Response "Unauthorized"
// @Security BearerAuth
// @Router /media/uploads [post]
func (h *MediaHandlers) PresignUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, ok := middleware.GetStaffIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("staff member not authenticated")))
			return
		}

		var req types.PresignUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("invalid request body")))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		resp, err := h.uploads.IssueUpload(r.Context(), req, staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Upload URL issued", resp))
	}
}

// ConfirmUpload finalizes a pending upload
// @Summary Confirm a completed upload
// @Description Locates the pending record by storage key and marks it completed with the final file size and kind-specific fields
// @Tags media
// @Accept json
// @Produce json
// @Param request body types.ConfirmUploadRequest true "Confirmation"
// @Success 200 {object} response.Response "Upload confirmed"
// @Failure 400 {object} response.Response "Bad request"
// @Failure 404 {object} response.Response "Unknown storage key"
// @Security BearerAuth
// @Router /media/uploads/confirm [post]
func (h *MediaHandlers) ConfirmUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, ok := middleware.GetStaffIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("staff member not authenticated")))
			return
		}

		var req types.ConfirmUploadRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("invalid request body")))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		result, err := h.uploads.Confirm(r.Context(), req, staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		var data interface{}
		if result.Kind == types.KindAudio {
			data = result.Audio
		} else {
			data = result.Photo
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Upload confirmed", data))
	}
}

// GetAudioRecord returns one audio record and counts the access
// @Summary Get an audio record
// @Tags media
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} types.AudioRecord
// @Failure 404 {object} response.Response "Record not found"
// @Security BearerAuth
// @Router /media/audio/{id} [get]
func (h *MediaHandlers) GetAudioRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, _ := middleware.GetStaffIDFromContext(r.Context())

		rec, err := h.uploads.GetAudio(r.Context(), r.PathValue("id"), staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Audio record retrieved", rec))
	}
}

// GetPhotoRecord returns one photo record and counts the access
// @Summary Get a photo record
// @Tags media
// @Produce json
// @Param id path string true "Record id"
// @Success 200 {object} types.PhotoRecord
// @Failure 404 {object} response.Response "Record not found"
// @Security BearerAuth
// @Router /media/photos/{id} [get]
func (h *MediaHandlers) GetPhotoRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, _ := middleware.GetStaffIDFromContext(r.Context())

		rec, err := h.uploads.GetPhoto(r.Context(), r.PathValue("id"), staffID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Photo record retrieved", rec))
	}
}

// DownloadURL issues a presigned download URL and counts the access
// @Summary Get a presigned download URL
// @Tags media
// @Produce json
// @Param kind path string true "Record kind (audio or photos)"
// @Param id path string true "Record id"
// @Param expires query int false "Expiration time in seconds (default: 3600)"
// @Success 200 {object} types.DownloadURLResponse
// @Failure 404 {object} response.Response "Record not found"
// @Security BearerAuth
// @Router /media/{kind}/{id}/download-url [get]
func (h *MediaHandlers) DownloadURL(kind types.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		staffID, _ := middleware.GetStaffIDFromContext(r.Context())

		expires := 0
		if expiresParam := r.URL.Query().Get("expires"); expiresParam != "" {
			if parsed, err := strconv.Atoi(expiresParam); err == nil && parsed > 0 {
				expires = parsed
			}
		}

		resp, err := h.uploads.IssueDownload(r.Context(), kind, r.PathValue("id"), staffID, expires)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Download URL issued", resp))
	}
}

// UpdateMetadata edits non-lifecycle fields of a record
// @Summary Update record metadata
// @Description Edits description, tags, classification and access level. Lifecycle fields are immutable through this endpoint
// @Tags media
// @Accept json
// @Produce json
// @Param kind path string true "Record kind (audio or photos)"
// @Param id path string true "Record id"
// @Param request body types.UpdateMetadataRequest true "Fields to update"
// @Success 200 {object} response.Response "Metadata updated"
// @Failure 404 {object} response.Response "Record not found"
// @Security BearerAuth
// @Router /media/{kind}/{id} [patch]
func (h *MediaHandlers) UpdateMetadata(kind types.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.UpdateMetadataRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("invalid request body")))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		var data interface{}
		var err error
		if kind == types.KindAudio {
			data, err = h.uploads.UpdateAudioMetadata(r.Context(), r.PathValue("id"), req)
		} else {
			data, err = h.uploads.UpdatePhotoMetadata(r.Context(), r.PathValue("id"), req)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Metadata updated", data))
	}
}

// DeleteRecord removes the stored object (best effort) and the record
// @Summary Delete a media record
// @Tags media
// @Param kind path string true "Record kind (audio or photos)"
// @Param id path string true "Record id"
// @Success 200 {object} response.Response "Record deleted"
// @Failure 404 {object} response.Response "Record not found"
// @Security BearerAuth
// @Router /media/{kind}/{id} [delete]
func (h *MediaHandlers) DeleteRecord(kind types.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if kind == types.KindAudio {
			err = h.uploads.DeleteAudio(r.Context(), r.PathValue("id"))
		} else {
			err = h.uploads.DeletePhoto(r.Context(), r.PathValue("id"))
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Record deleted", nil))
	}
}

// ListVisitMedia lists every record attached to a visit
// @Summary List media for a visit
// @Description Returns all audio and photo records for the visit. Listing does not count as an access
// @Tags media
// @Produce json
// @Param visitID path string true "Visit id"
// @Success 200 {object} upload.VisitMedia
// @Security BearerAuth
// @Router /visits/{visitID}/media [get]
func (h *MediaHandlers) ListVisitMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := h.uploads.ListByVisit(r.Context(), r.PathValue("visitID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Visit media retrieved", listing))
	}
}

// ListPatientMedia lists every record across a patient's visits
// @Summary List media for a patient
// @Description Returns all audio and photo records for the patient. Listing does not count as an access
// @Tags media
// @Produce json
// @Param patientID path string true "Patient id"
// @Success 200 {object} upload.VisitMedia
// @Security BearerAuth
// @Router /patients/{patientID}/media [get]
func (h *MediaHandlers) ListPatientMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listing, err := h.uploads.ListByPatient(r.Context(), r.PathValue("patientID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Patient media retrieved", listing))
	}
}
