package handlers

import (
	"bytes"
	"io"
	"mime/multipart"

	"github.com/h2non/filetype"

	"github.com/ignatzorin/proposaldesk/internal/pkg/apperror"
)

// readPDF читает загруженный файл целиком и проверяет его по магическим
// байтам: расширению и Content-Type клиента не доверяем.
func readPDF(fh *multipart.FileHeader, maxBytes int64) ([]byte, error) {
	if fh.Size == 0 {
		return nil, apperror.Validation("файл не может быть пустым")
	}
	if maxBytes > 0 && fh.Size > maxBytes {
		return nil, apperror.ErrFileTooLarge
	}

	src, err := fh.Open()
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeInternal, "не удалось открыть загруженный файл")
	}
	defer src.Close()

	var buf bytes.Buffer
	limit := maxBytes
	if limit <= 0 {
		limit = fh.Size
	}
	n, err := io.Copy(&buf, io.LimitReader(src, limit+1))
	if err != nil {
		return nil, apperror.Validation("не удалось прочитать файл")
	}
	if n > limit {
		return nil, apperror.ErrFileTooLarge
	}

	data := buf.Bytes()
	head := data
	if len(head) > 262 {
		head = head[:262]
	}
	if !filetype.Is(head, "pdf") {
		kind, _ := filetype.Match(head)
		if kind == filetype.Unknown {
			return nil, apperror.Validation("не удалось определить тип файла. Разрешены только PDF")
		}
		return nil, apperror.Validation("неподдерживаемый тип файла (%s). Разрешены только PDF", kind.MIME.Value)
	}
	return data, nil
}
