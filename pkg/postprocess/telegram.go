package postprocess

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/xaionaro-go/observability"
)

const (
	DefaultTelegramAPIURL = "https://api.telegram.org"

	// TelegramMaxUploadSize is the limit of the Bot API for sendDocument.
	TelegramMaxUploadSize = 50 * 1000 * 1000
)

type Telegram struct {
	APIURL   string
	BotToken string
	ChatID   string
	Client   *http.Client
}

var _ Uploader = (*Telegram)(nil)

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		APIURL:   DefaultTelegramAPIURL,
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{},
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Upload sends the file as a document. Files above TelegramMaxUploadSize
// are skipped with a warning.
func (t *Telegram) Upload(ctx context.Context, path string) (_err error) {
	logger.Debugf(ctx, "Upload(ctx, '%s')", path)
	defer func() { logger.Debugf(ctx, "/Upload(ctx, '%s'): %v", path, _err) }()

	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("unable to stat '%s': %w", path, err)
	}
	if fi.Size() > TelegramMaxUploadSize {
		logger.Warnf(ctx, "'%s' is %s, which is more than the Telegram limit of %s; not uploading",
			path, humanize.Bytes(uint64(fi.Size())), humanize.Bytes(TelegramMaxUploadSize))
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("unable to open '%s': %w", path, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	observability.Go(ctx, func(ctx context.Context) {
		pw.CloseWithError(writeDocumentForm(form, t.ChatID, path, f))
	})

	reqURL := fmt.Sprintf("%s/bot%s/sendDocument", t.APIURL, t.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, pr)
	if err != nil {
		pr.Close()
		return fmt.Errorf("unable to create the request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		pr.Close()
		// the URL contains the token
		return fmt.Errorf("unable to send the document: %w", unwrapURLError(err))
	}
	defer resp.Body.Close()

	var result telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("unable to decode the response (HTTP status %d): %w", resp.StatusCode, err)
	}
	if !result.OK {
		return fmt.Errorf("the Bot API refused the document: %s", result.Description)
	}
	return nil
}

func writeDocumentForm(
	form *multipart.Writer,
	chatID string,
	path string,
	r io.Reader,
) error {
	if err := form.WriteField("chat_id", chatID); err != nil {
		return err
	}
	if err := form.WriteField("caption", filepath.Base(path)); err != nil {
		return err
	}
	part, err := form.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return form.Close()
}

func unwrapURLError(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		if inner := u.Unwrap(); inner != nil {
			return inner
		}
	}
	return err
}
