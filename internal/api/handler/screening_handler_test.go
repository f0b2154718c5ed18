package handler_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/gofrs/uuid/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-matcher/internal/api/handler"
	"resume-matcher/internal/api/router"
	"resume-matcher/internal/processor"
	"resume-matcher/internal/storage"
	"resume-matcher/internal/types"
)

// fakeScreener 记录调用并返回预设结果
type fakeScreener struct {
	jdInfo    types.JDInfo
	jdErr     error
	jdPaths   []string
	record    types.HistoryRecord
	runErr    error
	requests  []processor.ScreeningRequest
	history   []types.HistoryRecord
	historyEr error
}

func (f *fakeScreener) ProcessJD(_ context.Context, path string) (types.JDInfo, error) {
	f.jdPaths = append(f.jdPaths, path)
	return f.jdInfo, f.jdErr
}

func (f *fakeScreener) RunScreening(_ context.Context, req processor.ScreeningRequest) (types.HistoryRecord, error) {
	f.requests = append(f.requests, req)
	if f.runErr != nil {
		return types.HistoryRecord{}, f.runErr
	}
	return f.record, nil
}

func (f *fakeScreener) LoadHistory(context.Context) ([]types.HistoryRecord, error) {
	return f.history, f.historyEr
}

func newTestServer(t *testing.T, svc handler.Screener) (*server.Hertz, *storage.Workspace) {
	t.Helper()
	ws, err := storage.NewWorkspace(t.TempDir())
	require.NoError(t, err)
	h := router.NewServer(server.WithHostPorts("127.0.0.1:0"))
	router.RegisterRoutes(h, handler.NewScreeningHandler(svc, ws, zerolog.Nop()))
	return h, ws
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for name, content := range files {
		f, err := zw.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func detailOf(t *testing.T, body []byte) string {
	t.Helper()
	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	return payload["detail"]
}

func TestRoot(t *testing.T) {
	h, _ := newTestServer(t, &fakeScreener{})

	resp := ut.PerformRequest(h.Engine, "GET", "/", nil).Result()
	assert.Equal(t, consts.StatusOK, resp.StatusCode())
	assert.JSONEq(t, `{"message":"Resume Screening API is running"}`, string(resp.Body()))
}

func TestUploadJD(t *testing.T) {
	svc := &fakeScreener{jdInfo: types.JDInfo{
		JobTitle:       "Data Scientist",
		RequiredSkills: "Python machine learning skills needed.",
		Embedding:      types.Embedding{0.1, 0.2},
		Text:           "full text",
	}}
	h, ws := newTestServer(t, svc)

	body, contentType := multipartBody(t, "JD.PDF", []byte("%PDF-1.4 stub"))
	resp := ut.PerformRequest(h.Engine, "POST", "/jd/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()

	require.Equal(t, consts.StatusOK, resp.StatusCode(), string(resp.Body()))
	assert.JSONEq(t, `{"job_title":"Data Scientist","required_skills":"Python machine learning skills needed.","embedding":[0.1,0.2]}`, string(resp.Body()))

	require.Equal(t, []string{ws.JDPath()}, svc.jdPaths)
	saved, err := os.ReadFile(ws.JDPath())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 stub", string(saved))
}

func TestUploadJDRejectsNonPDF(t *testing.T) {
	svc := &fakeScreener{}
	h, ws := newTestServer(t, svc)

	body, contentType := multipartBody(t, "jd.docx", []byte("x"))
	resp := ut.PerformRequest(h.Engine, "POST", "/jd/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()

	assert.Equal(t, consts.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, handler.MsgJDNotPDF, detailOf(t, resp.Body()))
	assert.Empty(t, svc.jdPaths)
	assert.NoFileExists(t, ws.JDPath())
}

func TestUploadJDExtractionErrorIsClientError(t *testing.T) {
	svc := &fakeScreener{jdErr: types.NewPDFExtractionError("uploads/jd.pdf", errors.New("malformed xref"))}
	h, _ := newTestServer(t, svc)

	body, contentType := multipartBody(t, "jd.pdf", []byte("not a pdf"))
	resp := ut.PerformRequest(h.Engine, "POST", "/jd/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()

	assert.Equal(t, consts.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "Unable to read PDF file. Ensure the file is a valid PDF.", detailOf(t, resp.Body()))
}

func TestUploadJDMissingFile(t *testing.T) {
	h, _ := newTestServer(t, &fakeScreener{})

	resp := ut.PerformRequest(h.Engine, "POST", "/jd/upload", nil).Result()
	assert.Equal(t, consts.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, handler.MsgFileRequired, detailOf(t, resp.Body()))
}

func TestUploadResumes(t *testing.T) {
	h, ws := newTestServer(t, &fakeScreener{})

	archive := zipBytes(t, map[string]string{
		"bob.docx":         "b",
		"alice.pdf":        "a",
		"notes/readme.txt": "r",
	})
	body, contentType := multipartBody(t, "resumes.zip", archive)
	resp := ut.PerformRequest(h.Engine, "POST", "/resumes/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode(), string(resp.Body()))

	var out handler.ResumeUploadResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	assert.Equal(t, []string{
		filepath.Join(ws.ResumesDir(), "alice.pdf"),
		filepath.Join(ws.ResumesDir(), "bob.docx"),
		filepath.Join(ws.ResumesDir(), "notes", "readme.txt"),
	}, out.ResumePaths)
	assert.FileExists(t, ws.ArchivePath())
}

func TestUploadResumesEmptyArchiveRoundTripsToScore(t *testing.T) {
	svc := &fakeScreener{record: types.HistoryRecord{Results: []types.ScoreResult{}}}
	h, _ := newTestServer(t, svc)

	body, contentType := multipartBody(t, "resumes.zip", zipBytes(t, nil))
	resp := ut.PerformRequest(h.Engine, "POST", "/resumes/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode(), string(resp.Body()))
	assert.JSONEq(t, `{"resume_paths":[]}`, string(resp.Body()))

	var uploaded handler.ResumeUploadResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &uploaded))
	scoreBody, err := json.Marshal(map[string]any{
		"jd_embedding": []float64{0.1, 0.2},
		"job_title":    "Data Scientist",
		"resume_paths": uploaded.ResumePaths,
	})
	require.NoError(t, err)

	resp = ut.PerformRequest(h.Engine, "POST", "/score",
		&ut.Body{Body: bytes.NewReader(scoreBody), Len: len(scoreBody)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	).Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode(), string(resp.Body()))
	assert.JSONEq(t, `{"results":[]}`, string(resp.Body()))
	require.Len(t, svc.requests, 1)
	assert.Empty(t, svc.requests[0].ResumePaths)
}

func TestUploadResumesRejectsNonZIP(t *testing.T) {
	h, _ := newTestServer(t, &fakeScreener{})

	body, contentType := multipartBody(t, "resumes.tar.gz", []byte("x"))
	resp := ut.PerformRequest(h.Engine, "POST", "/resumes/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()

	assert.Equal(t, consts.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, handler.MsgResumesNotZIP, detailOf(t, resp.Body()))
}

func TestUploadResumesInvalidArchive(t *testing.T) {
	h, _ := newTestServer(t, &fakeScreener{})

	body, contentType := multipartBody(t, "resumes.zip", []byte("definitely not a zip"))
	resp := ut.PerformRequest(h.Engine, "POST", "/resumes/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()

	assert.Equal(t, consts.StatusBadRequest, resp.StatusCode())
	assert.Equal(t, "Invalid ZIP file. Please upload a valid .zip archive.", detailOf(t, resp.Body()))
}

func TestScore(t *testing.T) {
	svc := &fakeScreener{record: types.HistoryRecord{
		RunID:     uuid.Must(uuid.NewV7()),
		Timestamp: "2026-10-18T09:30:00",
		JDTitle:   "Data Scientist",
		Results: []types.ScoreResult{{
			CandidateName:   "John Doe",
			SuggestedRole:   "Data Scientist",
			TotalScore:      0.92,
			ATSScore:        0.88,
			SkillMatchScore: 0.9,
			EducationScore:  0.8,
			MatchPriority:   types.PriorityHigh,
			Path:            "uploads/resumes/john.pdf",
		}},
	}}
	h, _ := newTestServer(t, svc)

	payload := []byte(`{"jd_embedding":[0.1,0.2,0.3],"job_title":"Data Scientist","resume_paths":["uploads/resumes/john.pdf"]}`)
	resp := ut.PerformRequest(h.Engine, "POST", "/score",
		&ut.Body{Body: bytes.NewReader(payload), Len: len(payload)},
		ut.Header{Key: "Content-Type", Value: "application/json"},
	).Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode(), string(resp.Body()))

	var out handler.ScoreResponse
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	require.Len(t, out.Results, 1)
	assert.Equal(t, "John Doe", out.Results[0].CandidateName)
	assert.Equal(t, types.PriorityHigh, out.Results[0].MatchPriority)

	require.Len(t, svc.requests, 1)
	assert.Equal(t, types.Embedding{0.1, 0.2, 0.3}, svc.requests[0].JDEmbedding)
	assert.Equal(t, "Data Scientist", svc.requests[0].JobTitle)
	assert.Equal(t, []string{"uploads/resumes/john.pdf"}, svc.requests[0].ResumePaths)
	assert.Empty(t, svc.requests[0].JDText)
	assert.False(t, svc.requests[0].SkipUnsupported)
}

func TestScoreValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		detail  string
	}{
		{"缺少向量", `{"job_title":"x","resume_paths":["a.pdf"]}`, "validation error: jd_embedding - required"},
		{"空向量", `{"jd_embedding":[],"job_title":"x","resume_paths":["a.pdf"]}`, "validation error: jd_embedding - min"},
		{"缺少路径", `{"jd_embedding":[0.1],"job_title":"x"}`, "validation error: resume_paths - required"},
		{"非法JSON", `{"jd_embedding":`, handler.MsgInvalidBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeScreener{}
			h, _ := newTestServer(t, svc)

			resp := ut.PerformRequest(h.Engine, "POST", "/score",
				&ut.Body{Body: bytes.NewReader([]byte(tt.payload)), Len: len(tt.payload)},
				ut.Header{Key: "Content-Type", Value: "application/json"},
			).Result()
			assert.Equal(t, consts.StatusBadRequest, resp.StatusCode())
			assert.Equal(t, tt.detail, detailOf(t, resp.Body()))
			assert.Empty(t, svc.requests)
		})
	}
}

func TestScoreErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{"缺失文件", types.NewMissingFileError("uploads/resumes/ghost.pdf"), consts.StatusBadRequest, "Resume file not found: uploads/resumes/ghost.pdf. Ensure the path is correct."},
		{"不支持的类型", types.NewUnsupportedTypeError("uploads/resumes/a.txt"), consts.StatusBadRequest, "Unsupported file type for uploads/resumes/a.txt. Use PDF or DOCX resumes."},
		{"包装后的提取错误", fmt.Errorf("评分失败: %w", types.NewDOCXExtractionError("b.docx", errors.New("zip: not a valid zip file"))), consts.StatusBadRequest, "Unable to read DOCX file. Ensure the file is a valid DOCX document."},
		{"内部错误", errors.New("保存历史记录失败: disk full"), consts.StatusInternalServerError, handler.MsgInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newTestServer(t, &fakeScreener{runErr: tt.err})

			payload := `{"jd_embedding":[0.1],"job_title":"x","resume_paths":["a.pdf"]}`
			resp := ut.PerformRequest(h.Engine, "POST", "/score",
				&ut.Body{Body: bytes.NewReader([]byte(payload)), Len: len(payload)},
				ut.Header{Key: "Content-Type", Value: "application/json"},
			).Result()
			assert.Equal(t, tt.status, resp.StatusCode())
			assert.Equal(t, tt.detail, detailOf(t, resp.Body()))
		})
	}
}

func TestHistory(t *testing.T) {
	svc := &fakeScreener{history: []types.HistoryRecord{
		{Timestamp: "2026-10-17T08:00:00", JDTitle: "First", Results: []types.ScoreResult{}},
		{Timestamp: "2026-10-18T08:00:00", JDText: "Second JD text", Results: []types.ScoreResult{}},
	}}
	h, _ := newTestServer(t, svc)

	resp := ut.PerformRequest(h.Engine, "GET", "/history", nil).Result()
	require.Equal(t, consts.StatusOK, resp.StatusCode())

	var out []types.HistoryRecord
	require.NoError(t, json.Unmarshal(resp.Body(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "First", out[0].JDTitle)
	assert.Equal(t, "Second JD text", out[1].JDText)
}

func TestHistoryFailure(t *testing.T) {
	h, _ := newTestServer(t, &fakeScreener{historyEr: errors.New("corrupt history")})

	resp := ut.PerformRequest(h.Engine, "GET", "/history", nil).Result()
	assert.Equal(t, consts.StatusInternalServerError, resp.StatusCode())
}

func TestStatusFor(t *testing.T) {
	status, detail := handler.StatusFor(types.NewInvalidArchiveError("x.zip", errors.New("bad")))
	assert.Equal(t, consts.StatusBadRequest, status)
	assert.Equal(t, "Invalid ZIP file. Please upload a valid .zip archive.", detail)

	status, _ = handler.StatusFor(context.DeadlineExceeded)
	assert.Equal(t, consts.StatusInternalServerError, status)
}

// panickingScreener 模拟底层解析库 panic
type panickingScreener struct {
	fakeScreener
}

func (p *panickingScreener) ProcessJD(context.Context, string) (types.JDInfo, error) {
	panic("loading {1 0}: found int64 instead of objdef")
}

func TestPanicReturnsInternalError(t *testing.T) {
	h, _ := newTestServer(t, &panickingScreener{})

	body, contentType := multipartBody(t, "jd.pdf", []byte("%PDF-1.4 garbled"))
	resp := ut.PerformRequest(h.Engine, "POST", "/jd/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	).Result()
	assert.Equal(t, consts.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, handler.MsgInternalError, detailOf(t, resp.Body()))

	resp = ut.PerformRequest(h.Engine, "GET", "/", nil).Result()
	assert.Equal(t, consts.StatusOK, resp.StatusCode(), "panic 后服务继续可用")
}
