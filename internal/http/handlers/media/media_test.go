package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/careloop/visit-media-service/internal/http/middleware"
	"github.com/careloop/visit-media-service/internal/services/upload"
	"github.com/careloop/visit-media-service/internal/storage"
	"github.com/careloop/visit-media-service/internal/types"
)

// fakeUploads scripts the controller's answers per test.
type fakeUploads struct {
	issueResp   *types.PresignUploadResponse
	issueErr    error
	confirmRes  *upload.ConfirmResult
	confirmErr  error
	audio       *types.AudioRecord
	getErr      error
	deleteErr   error
	lastStaffID string
}

func (f *fakeUploads) IssueUpload(_ context.Context, _ types.PresignUploadRequest, staffID string) (*types.PresignUploadResponse, error) {
	f.lastStaffID = staffID
	return f.issueResp, f.issueErr
}

func (f *fakeUploads) Confirm(_ context.Context, _ types.ConfirmUploadRequest, staffID string) (*upload.ConfirmResult, error) {
	f.lastStaffID = staffID
	return f.confirmRes, f.confirmErr
}

func (f *fakeUploads) GetAudio(_ context.Context, _, _ string) (*types.AudioRecord, error) {
	return f.audio, f.getErr
}

func (f *fakeUploads) GetPhoto(_ context.Context, _, _ string) (*types.PhotoRecord, error) {
	return nil, f.getErr
}

func (f *fakeUploads) IssueDownload(_ context.Context, _ types.Kind, _, _ string, _ int) (*types.DownloadURLResponse, error) {
	return &types.DownloadURLResponse{DownloadURL: "https://store.local/dl"}, nil
}

func (f *fakeUploads) UpdateAudioMetadata(_ context.Context, _ string, _ types.UpdateMetadataRequest) (*types.AudioRecord, error) {
	return f.audio, f.getErr
}

func (f *fakeUploads) UpdatePhotoMetadata(_ context.Context, _ string, _ types.UpdateMetadataRequest) (*types.PhotoRecord, error) {
	return nil, f.getErr
}

func (f *fakeUploads) DeleteAudio(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeUploads) DeletePhoto(_ context.Context, _ string) error {
	return f.deleteErr
}

func (f *fakeUploads) ListByVisit(_ context.Context, _ string) (*upload.VisitMedia, error) {
	return &upload.VisitMedia{}, nil
}

func (f *fakeUploads) ListByPatient(_ context.Context, _ string) (*upload.VisitMedia, error) {
	return &upload.VisitMedia{}, nil
}

func authedRequest(method, target string, body []byte) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.StaffIDKey, "staff-1")
	return req.WithContext(ctx)
}

func TestPresignUpload(t *testing.T) {
	fake := &fakeUploads{issueResp: &types.PresignUploadResponse{
		UploadURL:  "https://store.local/upload/k",
		StorageKey: "audio-recordings/v1/visit_audio_20250501_120000_abcd1234.wav",
		RecordID:   "rec-1",
		Kind:       types.KindAudio,
	}}
	h := NewMediaHandlers(fake)

	body, _ := json.Marshal(types.PresignUploadRequest{
		FileName:    "a.wav",
		ContentType: "audio/wav",
		VisitID:     "v1",
		PatientID:   "p1",
	})

	rr := httptest.NewRecorder()
	h.PresignUpload()(rr, authedRequest(http.MethodPost, "/media/uploads", body))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if fake.lastStaffID != "staff-1" {
		t.Fatalf("Expected staff id from context, got %q", fake.lastStaffID)
	}
}

func TestPresignUploadValidatesRequest(t *testing.T) {
	h := NewMediaHandlers(&fakeUploads{})

	// visit_id and patient_id missing
	body, _ := json.Marshal(map[string]string{
		"file_name":    "a.wav",
		"content_type": "audio/wav",
	})

	rr := httptest.NewRecorder()
	h.PresignUpload()(rr, authedRequest(http.MethodPost, "/media/uploads", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestPresignUploadRequiresAuth(t *testing.T) {
	h := NewMediaHandlers(&fakeUploads{})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/media/uploads", bytes.NewReader(nil))
	h.PresignUpload()(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401, got %d", rr.Code)
	}
}

func TestConfirmUploadUnknownKey(t *testing.T) {
	fake := &fakeUploads{confirmErr: fmt.Errorf("no record: %w", storage.ErrNotFound)}
	h := NewMediaHandlers(fake)

	body, _ := json.Marshal(types.ConfirmUploadRequest{
		StorageKey: "audio-recordings/v1/visit_audio_20250501_120000_abcd1234.wav",
		FileSize:   100,
	})

	rr := httptest.NewRecorder()
	h.ConfirmUpload()(rr, authedRequest(http.MethodPost, "/media/uploads/confirm", body))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}
}

func TestPresignUploadValidationErrorStatus(t *testing.T) {
	fake := &fakeUploads{issueErr: fmt.Errorf("%w: content type not allowed", upload.ErrValidation)}
	h := NewMediaHandlers(fake)

	body, _ := json.Marshal(types.PresignUploadRequest{
		FileName:    "a.bin",
		ContentType: "application/octet-stream",
		VisitID:     "v1",
		PatientID:   "p1",
	})

	rr := httptest.NewRecorder()
	h.PresignUpload()(rr, authedRequest(http.MethodPost, "/media/uploads", body))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
}

func TestPresignUploadUpstreamErrorStatus(t *testing.T) {
	fake := &fakeUploads{issueErr: fmt.Errorf("%w: signing failed", upload.ErrUpstream)}
	h := NewMediaHandlers(fake)

	body, _ := json.Marshal(types.PresignUploadRequest{
		FileName:    "a.wav",
		ContentType: "audio/wav",
		VisitID:     "v1",
		PatientID:   "p1",
	})

	rr := httptest.NewRecorder()
	h.PresignUpload()(rr, authedRequest(http.MethodPost, "/media/uploads", body))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rr.Code)
	}
}

func TestGetAudioRecord(t *testing.T) {
	fake := &fakeUploads{audio: &types.AudioRecord{
		UploadRecord: types.UploadRecord{AccessCount: 3},
		Duration:     180,
	}}
	h := NewMediaHandlers(fake)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodGet, "/media/audio/abc123", nil)
	req.SetPathValue("id", "abc123")
	h.GetAudioRecord()(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
}

func TestDeleteRecordNotFound(t *testing.T) {
	fake := &fakeUploads{deleteErr: storage.ErrNotFound}
	h := NewMediaHandlers(fake)

	rr := httptest.NewRecorder()
	req := authedRequest(http.MethodDelete, "/media/audio/abc123", nil)
	req.SetPathValue("id", "abc123")
	h.DeleteRecord(types.KindAudio)(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}
}
