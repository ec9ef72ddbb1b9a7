package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ptbridge/models"
)

type stubDownloadService struct {
	gotReq  models.DownloadRequest
	outcome models.DownloadOutcome
	space   int64
	err     error
}

func (s *stubDownloadService) Dispatch(ctx context.Context, req models.DownloadRequest) models.DownloadOutcome {
	s.gotReq = req
	return s.outcome
}

func (s *stubDownloadService) FreeSpace(ctx context.Context, clientID, path string) (int64, error) {
	return s.space, s.err
}

func TestDispatchHandler(t *testing.T) {
	stub := &stubDownloadService{
		outcome: models.DownloadOutcome{Kind: models.OutcomeSuccess, Success: true, Message: "sent"},
	}
	h := NewDownloadHandler(stub)

	body := `{"url":"https://pt.example.com/download.php?id=1","clientId":"tr-main","savePath":"/data/pt","autoStart":true}`
	rec := httptest.NewRecorder()
	h.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tr-main", stub.gotReq.ClientID)
	assert.Equal(t, "/data/pt", stub.gotReq.SavePath)
	assert.True(t, stub.gotReq.AutoStart)

	var outcome models.DownloadOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Success)
}

func TestDispatchHandlerInvalidRequestAnswers400(t *testing.T) {
	stub := &stubDownloadService{
		outcome: models.DownloadOutcome{
			Kind:  models.OutcomeError,
			Error: models.ErrorKindInvalidRequest,
		},
	}
	h := NewDownloadHandler(stub)

	rec := httptest.NewRecorder()
	h.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":""}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchHandlerBackendFailureStays200(t *testing.T) {
	// Backend failures are data, not transport errors; the outcome carries
	// the classification.
	stub := &stubDownloadService{
		outcome: models.DownloadOutcome{
			Kind:  models.OutcomeError,
			Error: models.ErrorKindDuplicate,
		},
	}
	h := NewDownloadHandler(stub)

	rec := httptest.NewRecorder()
	h.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(`{"url":"https://x/y"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDispatchHandlerBadBody(t *testing.T) {
	h := NewDownloadHandler(&stubDownloadService{})

	rec := httptest.NewRecorder()
	h.Dispatch(rec, httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader("{not json")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFreeSpaceHandler(t *testing.T) {
	h := NewDownloadHandler(&stubDownloadService{space: 1 << 40})

	rec := httptest.NewRecorder()
	h.FreeSpace(rec, httptest.NewRequest(http.MethodGet, "/api/download/freespace?clientId=tr-main&path=/data/pt", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var payload map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, int64(1<<40), payload["sizeBytes"])
}
