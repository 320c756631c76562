package e2e

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
)

// createTrackUploadRequest builds a multipart/form-data request with a fake audio file.
func createTrackUploadRequest(t *testing.T, token, filename, contentType string, size int) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	partHeader := make(textproto.MIMEHeader)
	partHeader.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	partHeader.Set("Content-Type", contentType)
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	fakeData := make([]byte, size)
	_, _ = part.Write(fakeData)

	writer.Close()

	req, err := http.NewRequest(http.MethodPost, "/api/tracks/", &buf)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

func TestTrackUpload_Success(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	req := createTrackUploadRequest(t, token, "anthem.mp3", "audio/mpeg", 2048)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusCreated)

	result := parseJSON(t, resp)
	if result["success"] != true {
		t.Errorf("expected success true, got %v", result["success"])
	}
	track, ok := result["track"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected 'track' object in response, got %v", result["track"])
	}
	if track["id"] == nil || track["id"] == "" {
		t.Error("expected track 'id' in response")
	}
	if track["originalName"] != "anthem.mp3" {
		t.Errorf("expected originalName 'anthem.mp3', got %v", track["originalName"])
	}
}

func TestTrackUpload_NoAuth(t *testing.T) {
	ta := setupApp(t)

	req := createTrackUploadRequest(t, "", "anthem.mp3", "audio/mpeg", 2048)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestTrackUpload_UnsupportedType(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)
	req := createTrackUploadRequest(t, token, "notes.txt", "text/plain", 512)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnsupportedMediaType)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "UNSUPPORTED_MEDIA_TYPE" {
		t.Errorf("expected error code UNSUPPORTED_MEDIA_TYPE, got %v", errObj["code"])
	}
}

func TestTrackUpload_OversizedFile(t *testing.T) {
	ta := setupApp(t)

	// 20 MiB exceeds the app's body limit, so the rejection happens at
	// the transport layer before any handler runs. The client must
	// still see the payload-too-large envelope.
	token := generateToken(t)
	req := createTrackUploadRequest(t, token, "huge.mp3", "audio/mpeg", 20<<20)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusRequestEntityTooLarge)

	result := parseJSON(t, resp)
	errObj := result["error"].(map[string]interface{})
	if errObj["code"] != "PAYLOAD_TOO_LARGE" {
		t.Errorf("expected error code PAYLOAD_TOO_LARGE, got %v", errObj["code"])
	}
}

func TestTrackUpload_MissingFile(t *testing.T) {
	ta := setupApp(t)

	token := generateToken(t)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	_ = writer.WriteField("name", "anthem")
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, "/api/tracks/", &buf)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestTrackList_OwnTracksOnly(t *testing.T) {
	ta := setupApp(t)

	// Upload one track as a fresh user
	userID := "list-user-" + uuid.New().String()
	token := generateTokenFor(t, userID, "list@example.com")
	req := createTrackUploadRequest(t, token, "walkout.wav", "audio/wav", 4096)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)

	// The owner sees it
	resp, err = doRequest(ta.app, http.MethodGet, "/api/tracks/", "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	tracks, ok := result["tracks"].([]interface{})
	if !ok {
		t.Fatalf("expected 'tracks' array in response, got %v", result["tracks"])
	}
	if len(tracks) != 1 {
		t.Errorf("expected 1 track, got %d", len(tracks))
	}

	// A different user sees nothing
	otherToken := generateTokenFor(t, "list-other-"+uuid.New().String(), "other@example.com")
	resp, err = doRequest(ta.app, http.MethodGet, "/api/tracks/", "", map[string]string{
		"Authorization": "Bearer " + otherToken,
	})
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result = parseJSON(t, resp)
	tracks, _ = result["tracks"].([]interface{})
	if len(tracks) != 0 {
		t.Errorf("expected 0 tracks for other user, got %d", len(tracks))
	}
}

func TestTrackDelete_Success(t *testing.T) {
	ta := setupApp(t)

	userID := "delete-user-" + uuid.New().String()
	token := generateTokenFor(t, userID, "delete@example.com")
	req := createTrackUploadRequest(t, token, "outro.m4a", "audio/mp4", 1024)

	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	track := parseJSON(t, resp)["track"].(map[string]interface{})
	trackID := track["id"].(string)

	resp, err = doRequest(ta.app, http.MethodDelete, "/api/tracks/"+trackID, "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNoContent)
}

func TestTrackDelete_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeTrackID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodDelete, "/api/tracks/"+fakeTrackID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
}

func TestTrackDelete_InUseByActiveJob(t *testing.T) {
	ta := setupApp(t)

	userID := "inuse-user-" + uuid.New().String()
	token := generateTokenFor(t, userID, "inuse@example.com")

	// Upload a track
	req := createTrackUploadRequest(t, token, "hype.mp3", "audio/mpeg", 2048)
	resp, err := ta.app.Test(req, -1)
	if err != nil {
		t.Fatalf("upload request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusCreated)
	track := parseJSON(t, resp)["track"].(map[string]interface{})
	trackID := track["id"].(string)

	// Reference it in a compilation
	body := `{
		"videoUrls": ["https://clips.example.com/a.mp4"],
		"quality": "fast",
		"audioTrack": {"kind": "custom", "id": "` + trackID + `"}
	}`
	resp, err = doRequest(ta.app, http.MethodPost, "/api/reels/compile", body, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("compile request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	jobID := parseJSON(t, resp)["jobId"].(string)

	// Deleting while the job is active must conflict
	resp, err = doRequest(ta.app, http.MethodDelete, "/api/tracks/"+trackID, "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusConflict)

	// Cancel the job, releasing the reference
	resp, err = doRequest(ta.app, http.MethodPost, "/api/reels/cancel/"+jobID, "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	// Now delete succeeds
	resp, err = doRequest(ta.app, http.MethodDelete, "/api/tracks/"+trackID, "", map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		t.Fatalf("delete request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusNoContent)
}
