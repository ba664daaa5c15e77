package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"mime/multipart"
	"os"
	"path/filepath"
	"slices"
	"strings"

	logx "voxchat/pkg/logger"

	"voxchat/internal/domain"
)

const (
	MaxUploadFiles = 10
	MaxUploadBytes = 50 << 20
)

var supportedExtensions = map[string]struct{}{
	"pdf": {}, "doc": {}, "docx": {}, "txt": {},
	"jpg": {}, "jpeg": {}, "png": {}, "bmp": {}, "tiff": {}, "tif": {}, "webp": {},
}

// ValidateUploads rejects a batch before any network traffic.
func ValidateUploads(files []domain.UploadFile) error {
	if len(files) == 0 {
		return &domain.ServiceError{Kind: domain.ErrUpload, Detail: "no files selected"}
	}
	if len(files) > MaxUploadFiles {
		return &domain.ServiceError{
			Kind:   domain.ErrUpload,
			Detail: fmt.Sprintf("at most %d files per upload, got %d", MaxUploadFiles, len(files)),
		}
	}
	for _, file := range files {
		name := uploadName(file)
		if !SupportedExtension(name) {
			return &domain.ServiceError{Kind: domain.ErrUpload, Detail: fmt.Sprintf("%s: unsupported file type", name)}
		}
		if file.Size > MaxUploadBytes {
			return &domain.ServiceError{Kind: domain.ErrUpload, Detail: fmt.Sprintf("%s: exceeds 50 MB limit", name)}
		}
	}
	return nil
}

// SupportedExtension reports whether name has an accepted document extension.
func SupportedExtension(name string) bool {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	_, ok := supportedExtensions[ext]
	return ok
}

// DialogPattern returns the accepted extensions as a file dialog filter.
func DialogPattern() string {
	patterns := make([]string, 0, len(supportedExtensions))
	for _, ext := range slices.Sorted(maps.Keys(supportedExtensions)) {
		patterns = append(patterns, "*."+ext)
	}
	return strings.Join(patterns, ";")
}

func uploadName(file domain.UploadFile) string {
	if file.Name != "" {
		return file.Name
	}
	return filepath.Base(file.Path)
}

// UploadDocuments validates files, then posts them to /upload_documents.
func (c *Client) UploadDocuments(ctx context.Context, files []domain.UploadFile, lang domain.Language) (domain.DocumentSet, error) {
	if err := ValidateUploads(files); err != nil {
		return domain.DocumentSet{}, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, file := range files {
		if err := appendFile(form, file); err != nil {
			return domain.DocumentSet{}, err
		}
	}
	fields := [][2]string{
		{"language", lang.Wire()},
		{"query", ""},
		{"chat_history", "[]"},
	}
	for _, field := range fields {
		if err := form.WriteField(field[0], field[1]); err != nil {
			return domain.DocumentSet{}, fmt.Errorf("build upload form: %w", err)
		}
	}
	if err := form.Close(); err != nil {
		return domain.DocumentSet{}, fmt.Errorf("build upload form: %w", err)
	}

	var out uploadResponse
	if err := c.do(ctx, "/upload_documents", form.FormDataContentType(), &body, domain.ErrUpload, &out); err != nil {
		return domain.DocumentSet{}, err
	}

	set := domain.DocumentSet{Documents: make([]domain.Document, 0, len(out.Documents))}
	for i, raw := range out.Documents {
		var header documentHeader
		if err := json.Unmarshal(raw, &header); err != nil {
			logx.Warn().Err(err).Int("index", i).Msg("skipping unreadable document entry")
			continue
		}
		set.Documents = append(set.Documents, domain.Document{
			Filename: header.Filename,
			IsImage:  header.IsImage,
			Ref:      append(json.RawMessage(nil), raw...),
		})
	}
	if set.Empty() {
		return domain.DocumentSet{}, &domain.ServiceError{Kind: domain.ErrUpload, Detail: "no documents could be processed"}
	}
	return set, nil
}

func appendFile(form *multipart.Writer, file domain.UploadFile) error {
	name := uploadName(file)
	f, err := os.Open(file.Path)
	if err != nil {
		return &domain.ServiceError{Kind: domain.ErrUpload, Detail: fmt.Sprintf("%s: %v", name, err)}
	}
	defer f.Close()

	part, err := form.CreateFormFile("files", name)
	if err != nil {
		return fmt.Errorf("build upload form: %w", err)
	}
	n, err := io.Copy(part, io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return &domain.ServiceError{Kind: domain.ErrUpload, Detail: fmt.Sprintf("%s: %v", name, err)}
	}
	if n > MaxUploadBytes {
		return &domain.ServiceError{Kind: domain.ErrUpload, Detail: fmt.Sprintf("%s: exceeds 50 MB limit", name)}
	}
	return nil
}
