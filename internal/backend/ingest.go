// ABOUTME: Paper ingestion against POST /retriever/ingest
// ABOUTME: Sends PDFs as multipart forms and URLs as JSON item lists

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxUploadBytes is the largest PDF accepted for upload.
const MaxUploadBytes = 10 << 20

// Generic failure messages used when the backend gives no detail.
const (
	msgFileFailed = "Could not process the uploaded file"
	msgURLFailed  = "Could not fetch this paper"
)

// DefaultURLTitle is the title given to URL ingests without one.
const DefaultURLTitle = "Fetched Paper"

var (
	// ErrUnsupportedFile is returned for uploads that are not PDFs.
	ErrUnsupportedFile = errors.New("only PDF files are supported")

	// ErrFileTooLarge is returned for uploads over MaxUploadBytes.
	ErrFileTooLarge = fmt.Errorf("file exceeds %d MB limit", MaxUploadBytes>>20)

	// ErrEmptyURL is returned when a URL ingest names nothing.
	ErrEmptyURL = errors.New("url is required")
)

var validate = validator.New()

// IngestItem describes one document in an ingest request.
type IngestItem struct {
	DocID string `json:"doc_id" validate:"required"`
	Title string `json:"title" validate:"required"`
	URL   string `json:"url,omitempty" validate:"omitempty,url"`
}

type ingestRequest struct {
	Items []IngestItem `json:"items" validate:"required,min=1,dive"`
}

// IngestResponse is the backend's acknowledgement. Only Status is
// interpreted; Raw keeps whatever JSON the backend sent.
type IngestResponse struct {
	Status string          `json:"status"`
	Raw    json.RawMessage `json:"-"`
}

// Upload is a PDF to send to the retriever.
type Upload struct {
	Filename    string
	Title       string // defaults to Filename
	ContentType string // as reported by the uploader, may be empty
	Data        []byte
}

// CheckUpload applies the client-side upload rules: PDF by MIME type or
// extension, at most MaxUploadBytes.
func CheckUpload(filename, contentType string, size int) error {
	isPDF := strings.EqualFold(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]), "application/pdf") ||
		strings.EqualFold(filepath.Ext(filename), ".pdf")
	if !isPDF {
		return ErrUnsupportedFile
	}
	if size > MaxUploadBytes {
		return ErrFileTooLarge
	}
	return nil
}

// IngestFile uploads a PDF. The document ID is the file name.
func (c *Client) IngestFile(ctx context.Context, up Upload) (*IngestResponse, error) {
	name := filepath.Base(up.Filename)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("%w: missing file name", ErrUnsupportedFile)
	}
	if err := CheckUpload(name, up.ContentType, len(up.Data)); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(up.Title)
	if title == "" {
		title = name
	}
	req := ingestRequest{Items: []IngestItem{{DocID: name, Title: title}}}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid ingest request: %w", err)
	}
	descriptor, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding ingest request: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%s`, strconv.Quote(name)))
	h.Set("Content-Type", "application/pdf")
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("creating file part: %w", err)
	}
	if _, err := part.Write(up.Data); err != nil {
		return nil, fmt.Errorf("writing file part: %w", err)
	}
	if err := mw.WriteField("request", string(descriptor)); err != nil {
		return nil, fmt.Errorf("writing request part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	body, err := c.post(ctx, c.endpoint("retriever", "ingest"), mw.FormDataContentType(), &buf, msgFileFailed)
	if err != nil {
		return nil, err
	}

	c.logger.Info("ingested file", "doc_id", name, "size", len(up.Data))
	return decodeIngestResponse(body), nil
}

// NormalizeURL trims raw and adds https:// when no http(s) scheme is present.
func NormalizeURL(raw string) (string, error) {
	u := strings.TrimSpace(raw)
	if u == "" {
		return "", ErrEmptyURL
	}
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "https://" + u
	}
	return u, nil
}

// IngestURL asks the retriever to fetch a paper by URL. The document ID is
// url_<unix millis>; the title defaults to DefaultURLTitle.
func (c *Client) IngestURL(ctx context.Context, rawURL, title string) (*IngestResponse, string, error) {
	u, err := NormalizeURL(rawURL)
	if err != nil {
		return nil, "", err
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultURLTitle
	}
	docID := "url_" + strconv.FormatInt(c.now().UnixMilli(), 10)

	req := ingestRequest{Items: []IngestItem{{DocID: docID, Title: title, URL: u}}}
	if err := validate.Struct(req); err != nil {
		return nil, "", fmt.Errorf("invalid ingest request: %w", err)
	}
	body, err := jsonBody(req)
	if err != nil {
		return nil, "", fmt.Errorf("encoding ingest request: %w", err)
	}

	data, err := c.post(ctx, c.endpoint("retriever", "ingest"), "application/json", body, msgURLFailed)
	if err != nil {
		return nil, "", err
	}

	c.logger.Info("ingested url", "doc_id", docID, "url", u)
	return decodeIngestResponse(data), docID, nil
}

// decodeIngestResponse never fails: the success payload is backend-defined.
func decodeIngestResponse(body []byte) *IngestResponse {
	resp := &IngestResponse{}
	if json.Valid(body) {
		resp.Raw = json.RawMessage(body)
		_ = json.Unmarshal(body, resp)
	}
	return resp
}
