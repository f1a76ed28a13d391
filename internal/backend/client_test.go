// ABOUTME: Tests for the backend HTTP client against httptest servers
// ABOUTME: Covers base URL resolution, multipart and JSON ingest, error details and result envelopes

package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestResolveBaseURL(t *testing.T) {
	t.Setenv(EnvBaseURL, "")
	assert.Equal(t, DefaultBaseURL, ResolveBaseURL(""))
	assert.Equal(t, "http://backend:9000", ResolveBaseURL("http://backend:9000"))

	t.Setenv(EnvBaseURL, "https://override.example")
	assert.Equal(t, "https://override.example", ResolveBaseURL("http://backend:9000"))
}

func TestNew(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())

	c, err = New("http://host:8000/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://host:8000/api/retriever/ingest", c.endpoint("retriever", "ingest"))

	_, err = New("ftp://host")
	assert.Error(t, err)
}

func TestIngestFile_SendsMultipart(t *testing.T) {
	pdf := []byte("%PDF-1.7 fake")

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/retriever/ingest", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, hdr, err := r.FormFile("files")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "attention.pdf", hdr.Filename)
		assert.Equal(t, "application/pdf", hdr.Header.Get("Content-Type"))
		got, _ := io.ReadAll(file)
		assert.Equal(t, pdf, got)

		var desc ingestRequest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &desc))
		assert.Equal(t, []IngestItem{{DocID: "attention.pdf", Title: "Attention Is All You Need"}}, desc.Items)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"processing"}`))
	})

	resp, err := c.IngestFile(t.Context(), Upload{
		Filename: "/home/me/papers/attention.pdf",
		Title:    "Attention Is All You Need",
		Data:     pdf,
	})
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	assert.JSONEq(t, `{"status":"processing"}`, string(resp.Raw))
}

func TestIngestFile_TitleDefaultsToFilename(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		var desc ingestRequest
		require.NoError(t, json.Unmarshal([]byte(r.FormValue("request")), &desc))
		assert.Equal(t, "notes.PDF", desc.Items[0].Title)
		w.Write([]byte(`ok`))
	})

	resp, err := c.IngestFile(t.Context(), Upload{Filename: "notes.PDF", Data: []byte("x")})
	require.NoError(t, err)
	assert.Empty(t, resp.Status, "non-JSON success bodies are tolerated")
	assert.Nil(t, resp.Raw)
}

func TestIngestFile_ClientSideChecks(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	_, err := c.IngestFile(t.Context(), Upload{Filename: "paper.docx", ContentType: "application/msword", Data: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = c.IngestFile(t.Context(), Upload{Filename: "big.pdf", Data: make([]byte, MaxUploadBytes+1)})
	assert.ErrorIs(t, err, ErrFileTooLarge)

	assert.False(t, called, "rejected uploads never reach the backend")
}

func TestCheckUpload(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		size        int
		want        error
	}{
		{"pdf extension", "a.pdf", "", 10, nil},
		{"pdf mime without extension", "download", "application/pdf", 10, nil},
		{"mime with params", "download", "application/pdf; charset=binary", 10, nil},
		{"upper case extension", "A.PDF", "", 10, nil},
		{"text file", "a.txt", "text/plain", 10, ErrUnsupportedFile},
		{"exactly at limit", "a.pdf", "", MaxUploadBytes, nil},
		{"over limit", "a.pdf", "", MaxUploadBytes + 1, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckUpload(tt.filename, tt.contentType, tt.size)
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestIngest_ErrorDetail(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail string", http.StatusBadRequest, `{"detail":"No items provided."}`, "No items provided."},
		{"message fallback", http.StatusInternalServerError, `{"message":"index offline"}`, "index offline"},
		{"detail preferred", http.StatusBadRequest, `{"detail":"d","message":"m"}`, "d"},
		{"validation array", http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"],"msg":"field required"}]}`, msgFileFailed},
		{"empty detail", http.StatusBadRequest, `{"detail":"  "}`, msgFileFailed},
		{"html body", http.StatusBadGateway, `<html>bad gateway</html>`, msgFileFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.IngestFile(t.Context(), Upload{Filename: "a.pdf", Data: []byte("x")})
			require.Error(t, err)

			apiErr, ok := IsAPIError(err)
			require.True(t, ok, "expected *APIError, got %T", err)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.want, apiErr.Detail)
		})
	}
}

func TestIngestURL(t *testing.T) {
	fixed := time.UnixMilli(1700000000123)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/retriever/ingest", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ingestRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []IngestItem{{
			DocID: "url_1700000000123",
			Title: DefaultURLTitle,
			URL:   "https://arxiv.org/abs/1706.03762",
		}}, req.Items)

		w.Write([]byte(`{"status":"processing"}`))
	}, withClock(func() time.Time { return fixed }))

	resp, docID, err := c.IngestURL(t.Context(), "  arxiv.org/abs/1706.03762 ", "")
	require.NoError(t, err)
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, "url_1700000000123", docID)
}

func TestIngestURL_GenericFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := c.IngestURL(t.Context(), "https://example.com/paper", "Paper")
	apiErr, ok := IsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, msgURLFailed, apiErr.Detail)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"arxiv.org/abs/1", "https://arxiv.org/abs/1"},
		{"http://example.com", "http://example.com"},
		{"HTTPS://Example.com", "HTTPS://Example.com"},
		{"  example.com  ", "https://example.com"},
	}
	for _, tt := range tests {
		got, err := NormalizeURL(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := NormalizeURL("   ")
	assert.ErrorIs(t, err, ErrEmptyURL)
}

func TestExperimentResult_Envelopes(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus string
		wantTest   bool
		wantErr    string
	}{
		{"running", `{"status":"running"}`, StatusRunning, false, ""},
		{"failed", `{"status":"failed","error":"boom"}`, StatusFailed, false, "boom"},
		{"completed", `{"status":"completed","result":{"test":"ttest","p_value":0.03},"explanation":"significant"}`, StatusCompleted, true, ""},
		{"bare result", `{"test":"anova","f_statistic":4.2}`, StatusCompleted, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/experiment/result/task-9", r.URL.Path)
				w.Write([]byte(tt.body))
			})

			res, err := c.ExperimentResult(t.Context(), "task-9")
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, res.Status)
			assert.Equal(t, "task-9", res.TaskID)
			assert.Equal(t, tt.wantTest, strings.Contains(string(res.Payload), `"test"`))
			assert.Equal(t, tt.wantErr, res.Error)
		})
	}
}

func TestExperimentResult_ExplanationObjectKeptVerbatim(t *testing.T) {
	res, err := ParseResult("t", []byte(`{"status":"completed","result":{"test":"chi2"},"explanation":{"summary":"x"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"x"}`, res.Explanation)
	assert.True(t, res.Completed())
}

func TestExperimentResult_EscapesTaskID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/experiment/result/a%2Fb%20c", r.URL.EscapedPath())
		w.Write([]byte(`{"status":"running"}`))
	})

	res, err := c.ExperimentResult(t.Context(), "a/b c")
	require.NoError(t, err)
	assert.True(t, res.Pending())
}

func TestExperimentResult_BadBodies(t *testing.T) {
	for _, body := range []string{`[]`, `{"status":"weird"}`, `{"status":"completed"}`, `not json`} {
		_, err := ParseResult("t", []byte(body))
		assert.Error(t, err, body)
	}

	_, err := (&Client{}).ExperimentResult(t.Context(), " ")
	assert.ErrorIs(t, err, ErrEmptyTaskID)
}

func TestExperimentResult_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, err := New(srv.URL)
	require.NoError(t, err)
	srv.Close()

	_, err = c.ExperimentResult(t.Context(), "task")
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr), "transport failures are not API errors")
}
