package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-grid-api/internal/dto"
	"github.com/noah-isme/timetable-grid-api/internal/middleware"
	"github.com/noah-isme/timetable-grid-api/internal/models"
	"github.com/noah-isme/timetable-grid-api/internal/service"
	appErrors "github.com/noah-isme/timetable-grid-api/pkg/errors"
)

type timetableServiceMock struct {
	lastInput   service.RenderInput
	lastUpload  []byte
	extractResp *dto.ExtractResponse
	renderResp  *dto.RenderResponse
	download    *service.Download
	err         error
}

func (m *timetableServiceMock) Extract(_ context.Context, upload []byte) (*dto.ExtractResponse, error) {
	m.lastUpload = upload
	return m.extractResp, m.err
}

func (m *timetableServiceMock) Render(_ context.Context, input service.RenderInput) (*dto.RenderResponse, error) {
	m.lastInput = input
	return m.renderResp, m.err
}

func (m *timetableServiceMock) ResolveDownload(_ context.Context, _ string) (*service.Download, error) {
	return m.download, m.err
}

type renderJobServiceMock struct {
	actor     string
	created   *dto.RenderJobResponse
	status    *dto.RenderJobStatusResponse
	resultURL string
	err       error
}

func (m *renderJobServiceMock) CreateJob(_ context.Context, _ service.RenderInput, actor string) (*dto.RenderJobResponse, error) {
	m.actor = actor
	return m.created, m.err
}

func (m *renderJobServiceMock) GetStatus(_ context.Context, _ string) (*dto.RenderJobStatusResponse, error) {
	return m.status, m.err
}

func (m *renderJobServiceMock) ResultURL(_ context.Context, _ string) (string, error) {
	return m.resultURL, m.err
}

func multipartContext(t *testing.T, path string, fields map[string]string, file []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if file != nil {
		part, err := mw.CreateFormFile("file", "timetable.xlsx")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestTimetableHandlerExtract(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{extractResp: &dto.ExtractResponse{Label: "Петров П.П.", Variant: models.VariantProfessor}}
	h := NewTimetableHandler(svc, nil, nil, 1024)

	c, w := multipartContext(t, "/timetables/extract", nil, []byte("xlsx-bytes"))
	h.Extract(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte("xlsx-bytes"), svc.lastUpload)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Петров П.П.", data["label"])
}

func TestTimetableHandlerExtractRequiresFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&timetableServiceMock{}, nil, nil, 1024)

	c, w := multipartContext(t, "/timetables/extract", nil, nil)
	h.Extract(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = multipartContext(t, "/timetables/extract", nil, bytes.Repeat([]byte("x"), 2048))
	h.Extract(c)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTimetableHandlerRender(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{renderResp: &dto.RenderResponse{ID: "r1", DownloadURL: "/api/v1/export/tok"}}
	h := NewTimetableHandler(svc, nil, nil, 1024)

	c, w := multipartContext(t, "/timetables/render", map[string]string{"range": "10.02-16.03", "format": "svg"}, []byte("xlsx"))
	h.Render(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FormatSVG, svc.lastInput.Format)
	assert.Equal(t, "10.02-16.03", svc.lastInput.Range)
	assert.False(t, svc.lastInput.NoColor)
}

func TestTimetableHandlerRenderValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{renderResp: &dto.RenderResponse{ID: "r1"}}
	h := NewTimetableHandler(svc, nil, nil, 1024)

	c, w := multipartContext(t, "/timetables/render", map[string]string{"range": "10.02-16.03", "format": "gif"}, []byte("xlsx"))
	h.Render(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = multipartContext(t, "/timetables/render", map[string]string{"format": "svg"}, []byte("xlsx"))
	h.Render(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerNoColorNeedsAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{renderResp: &dto.RenderResponse{ID: "r1"}}
	h := NewTimetableHandler(svc, nil, nil, 1024)
	fields := map[string]string{"range": "10.02-16.03", "format": "pdf", "no_color": "true"}

	c, w := multipartContext(t, "/timetables/render", fields, []byte("xlsx"))
	h.Render(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = multipartContext(t, "/timetables/render", fields, []byte("xlsx"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "admin", Role: models.RoleAdmin})
	h.Render(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastInput.NoColor)
}

func TestTimetableHandlerRenderServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{err: appErrors.Clone(appErrors.ErrCalendarRange, "row 40 has no weekday")}
	h := NewTimetableHandler(svc, nil, nil, 1024)

	c, w := multipartContext(t, "/timetables/render", map[string]string{"range": "10.02-16.03", "format": "csv"}, []byte("xlsx"))
	h.Render(c)
	assert.Equal(t, appErrors.ErrCalendarRange.Status, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, appErrors.ErrCalendarRange.Code, errBody["code"])
}

func TestTimetableHandlerJobs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &renderJobServiceMock{
		created:   &dto.RenderJobResponse{ID: "job-1", Status: models.RenderStatusQueued},
		status:    &dto.RenderJobStatusResponse{ID: "job-1", Status: models.RenderStatusFinished, Progress: 100},
		resultURL: "/api/v1/export/tok",
	}
	h := NewTimetableHandler(&timetableServiceMock{}, jobs, nil, 1024)

	c, w := multipartContext(t, "/timetables/jobs", map[string]string{"range": "10.02-16.03", "format": "ics"}, []byte("xlsx"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{Username: "admin", Role: models.RoleAdmin})
	h.CreateJob(c)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "admin", jobs.actor)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetables/jobs/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.JobStatus(c)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/timetables/jobs/job-1/result", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	h.JobResult(c)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/api/v1/export/tok", w.Header().Get("Location"))
}

func TestTimetableHandlerJobsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewTimetableHandler(&timetableServiceMock{}, nil, nil, 1024)

	c, w := multipartContext(t, "/timetables/jobs", map[string]string{"range": "10.02-16.03", "format": "ics"}, []byte("xlsx"))
	h.CreateJob(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestTimetableHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceMock{download: &service.Download{Filename: "timetable.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("a,b\n")}}
	h := NewTimetableHandler(svc, nil, nil, 1024)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/export/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}
	h.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.Equal(t, "a,b\n", w.Body.String())

	svc.err = appErrors.Clone(appErrors.ErrNotFound, "download link expired")
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/export/tok", nil)
	h.Download(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type tokenIssuerStub struct {
	req models.TokenRequest
	err error
}

func (s *tokenIssuerStub) IssueToken(_ context.Context, req models.TokenRequest) (*models.TokenResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &models.TokenResponse{AccessToken: "jwt", TokenType: "Bearer", Role: models.RoleAdmin, IssuedAt: time.Now()}, nil
}

func TestAuthHandlerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	issuer := &tokenIssuerStub{}
	h := NewAuthHandler(issuer)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(`{"username":"admin","password":"pw"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Token(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin", issuer.req.Username)

	issuer.err = appErrors.ErrInvalidLogin
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(`{"username":"admin","password":"no"}`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Token(c)
	assert.Equal(t, appErrors.ErrInvalidLogin.Status, w.Code)

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/token", bytes.NewBufferString(`not json`))
	c.Request.Header.Set("Content-Type", "application/json")
	h.Token(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type pingerStub struct{ err error }

func (p pingerStub) Ping(context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)

	h := NewMetricsHandler(nil, map[string]Pinger{"cache": pingerStub{}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]Pinger{"cache": pingerStub{err: errors.New("connection refused")}})
	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}
