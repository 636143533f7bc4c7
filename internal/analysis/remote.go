package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// ImageFilename is the file name sent with the multipart image field.
const ImageFilename = "handDrawing.png"

// RemoteAnalyzer posts snapshots to an HTTP model service.
//
// The request is multipart/form-data with an "image" file part and a "text"
// field. The service replies {"answer": "..."} on success and
// {"error": "..."} with a 4xx or 5xx status otherwise.
type RemoteAnalyzer struct {
	endpoint string
	client   *http.Client
}

// NewRemoteAnalyzer returns an analyzer for endpoint. A zero timeout means
// requests are bounded only by their context.
func NewRemoteAnalyzer(endpoint string, timeout time.Duration) *RemoteAnalyzer {
	return &RemoteAnalyzer{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type remoteResponse struct {
	Answer string `json:"answer"`
	Error  string `json:"error"`
}

// Analyze sends prompt and image and returns the cleaned answer.
func (a *RemoteAnalyzer) Analyze(ctx context.Context, prompt string, image []byte) (string, error) {
	if len(image) == 0 {
		return "", ErrEmptyImage
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, ImageFilename))
	header.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("write image part: %w", err)
	}
	if err := mw.WriteField("text", prompt); err != nil {
		return "", fmt.Errorf("write text field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("analysis request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var out remoteResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("analysis service returned %d", resp.StatusCode)
		}
		return "", fmt.Errorf("parse response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if out.Error == "" {
			out.Error = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("analysis service returned %d: %s", resp.StatusCode, out.Error)
	}
	if out.Error != "" {
		return "", fmt.Errorf("analysis service: %s", out.Error)
	}

	return CleanAnswer(out.Answer), nil
}
