package httphandler

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jgivc/regarchive/internal/common"
	"github.com/jgivc/regarchive/internal/entity"
)

type fakeService struct {
	job      *entity.ArchiveJob
	jobErr   error
	hookOK   bool
	hookErrs []string
}

func (s *fakeService) BeforeArchive(_ context.Context, dstNodeID, initiatorID string) (*entity.ArchiveJob, error) {
	if s.jobErr != nil {
		return nil, s.jobErr
	}

	return s.job, nil
}

func (s *fakeService) Archive(_ context.Context, _ string) error {
	return nil
}

func (s *fakeService) Job(_ context.Context, _ string) (*entity.ArchiveJob, error) {
	if s.jobErr != nil {
		return nil, s.jobErr
	}

	return s.job, nil
}

func (s *fakeService) HandleCopyResult(_ context.Context, _, _ string, ok bool, errs []string) error {
	s.hookOK = ok
	s.hookErrs = errs

	return nil
}

const testJobID = "0f81d9a2-6f51-4e4a-9b3a-2f6d08a1c9e7"

func newMux(srv ArchiveService) *http.ServeMux {
	log := slog.New(slog.DiscardHandler)
	mux := http.NewServeMux()
	mux.Handle("POST /archives/{$}", NewArchiveHandler(srv, log))
	mux.Handle("GET /jobs/{id}/{$}", NewJobHandler(srv, log))
	mux.Handle("POST /hooks/copy/{id}/{target}/{$}", NewCopyHookHandler(srv, log))

	return mux
}

func TestArchiveHandler(t *testing.T) {
	srv := &fakeService{job: &entity.ArchiveJob{ID: testJobID, DstNodeID: "dst-1"}}

	req := httptest.NewRequest(http.MethodPost, "/archives/", strings.NewReader(`{"node_id":"dst-1","initiator_id":"user-1"}`))
	w := httptest.NewRecorder()
	newMux(srv).ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), testJobID)
}

func TestArchiveHandlerBadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/archives/", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	newMux(&fakeService{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobHandlerNotFound(t *testing.T) {
	srv := &fakeService{jobErr: common.ErrJobNotFoundError}

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+testJobID+"/", nil)
	w := httptest.NewRecorder()
	newMux(srv).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobHandlerBadID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid/", nil)
	w := httptest.NewRecorder()
	newMux(&fakeService{}).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCopyHookHandler(t *testing.T) {
	srv := &fakeService{}

	req := httptest.NewRequest(http.MethodPost, "/hooks/copy/"+testJobID+"/github/",
		strings.NewReader(`{"status":"success"}`))
	w := httptest.NewRecorder()
	newMux(srv).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, srv.hookOK)
}

func TestCopyHookHandlerFailure(t *testing.T) {
	srv := &fakeService{}

	req := httptest.NewRequest(http.MethodPost, "/hooks/copy/"+testJobID+"/github/",
		strings.NewReader(`{"status":"failure","errors":["copy timed out"]}`))
	w := httptest.NewRecorder()
	newMux(srv).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, srv.hookOK)
	assert.Equal(t, []string{"copy timed out"}, srv.hookErrs)
}
