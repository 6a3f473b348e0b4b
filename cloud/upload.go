package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
)

// uploadResponse is the body returned by the Appium broker upload endpoint.
type uploadResponse struct {
	Status    int    `json:"status"`
	SessionID string `json:"sessionId"`
	Value     struct {
		Message     string `json:"message"`
		UploadCount int    `json:"uploadCount"`
		ExpiresIn   int    `json:"expiresIn"`
		Uploads     struct {
			File string `json:"file"`
		} `json:"uploads"`
	} `json:"value"`
}

// Upload sends appFile to the Appium upload endpoint as a multipart form with
// basic authentication and returns the file reference to put in the
// capability set. The reference can be reused on later runs instead of
// uploading again. There is no retry.
func (c *Client) Upload(ctx context.Context, appFile string) (string, error) {
	if c.uploadURL == "" {
		return "", fmt.Errorf("%w: upload URL is not configured", ErrUploadFailed)
	}

	f, err := os.Open(appFile)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}

	c.logger.Info(ctx, "uploading application", map[string]interface{}{
		"file":  appFile,
		"bytes": info.Size(),
	})

	pr, pw := io.Pipe()
	defer pr.Close()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeFilePart(mw, f, filepath.Base(appFile)))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, pr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.uploader.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %v", ErrUploadFailed, err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %w", ErrUploadFailed, newAPIError(resp.StatusCode, body))
	}

	var ur uploadResponse
	if err := json.Unmarshal(body, &ur); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", ErrUploadFailed, err)
	}
	ref := ur.Value.Uploads.File
	if ref == "" {
		return "", fmt.Errorf("%w: response carried no file reference (%s)", ErrUploadFailed, ur.Value.Message)
	}

	c.logger.Info(ctx, "application uploaded", map[string]interface{}{
		"file_uuid":  ref,
		"expires_in": ur.Value.ExpiresIn,
	})
	return ref, nil
}

func writeFilePart(mw *multipart.Writer, r io.Reader, name string) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	h.Set("Content-Type", "application/octet-stream")

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}
