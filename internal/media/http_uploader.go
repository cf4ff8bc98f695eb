package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// HTTPUploader posts files to the media-ingest endpoint as multipart forms.
type HTTPUploader struct {
	URL    string
	Token  string
	Client *http.Client
}

type uploadResponse struct {
	Success    bool `json:"success"`
	Attachment *struct {
		SourceURL string `json:"sourceUrl"`
		StorageID string `json:"storageId"`
	} `json:"attachment"`
	Message string `json:"message"`
}

// Upload streams body in the "file" field with the original name in "name".
func (u *HTTPUploader) Upload(ctx context.Context, file LocalFile, body io.Reader) (Stored, error) {
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	go func() {
		err := writeForm(form, file, body)
		if err == nil {
			err = form.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.URL, pr)
	if err != nil {
		_ = pr.Close()
		return Stored{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if u.Token != "" {
		req.Header.Set("Authorization", "Bearer "+u.Token)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		_ = pr.Close()
		return Stored{}, err
	}
	defer resp.Body.Close()

	var out uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Stored{}, fmt.Errorf("decode upload response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !out.Success || out.Attachment == nil {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Stored{}, fmt.Errorf("media host rejected upload: %s", msg)
	}
	return Stored{URL: out.Attachment.SourceURL, StorageID: out.Attachment.StorageID}, nil
}

func writeForm(form *multipart.Writer, file LocalFile, body io.Reader) error {
	if err := form.WriteField("name", file.DisplayName()); err != nil {
		return err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(file.DisplayName())))
	header.Set("Content-Type", file.MIMEType)
	part, err := form.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, body)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
