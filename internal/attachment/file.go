package attachment

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/taskcal/internal/kv"
)

const defaultType = "application/octet-stream"

// File is a file selected for upload.
type File struct {
	// Name is the display name stored with the attachment.
	Name string
	// Type is the MIME type. Empty means detect from content.
	Type string
	// Open returns the file contents.
	Open func() (io.ReadCloser, error)
}

// FromPath describes the file at path. Its type is guessed from the extension.
func FromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Type: mime.TypeByExtension(filepath.Ext(path)),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// FromBytes describes an in-memory file.
func FromBytes(name, typ string, data []byte) File {
	return File{
		Name: name,
		Type: typ,
		Open: func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
	}
}

// maxContent is the largest file whose base64 encoding can fit in quota
// bytes. Zero means unbounded.
func maxContent(quota int64) int64 {
	if quota <= 0 {
		return 0
	}
	return quota / 4 * 3
}

// encode reads f and builds its record, without the owning task. With a
// non-zero limit, reading stops as soon as the file is known to be larger.
func encode(f File, limit int64) (Attachment, error) {
	if f.Open == nil {
		return Attachment{}, fmt.Errorf("%s: no content", f.Name)
	}
	rc, err := f.Open()
	if err != nil {
		return Attachment{}, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return Attachment{}, fmt.Errorf("read %s: %w", f.Name, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return Attachment{}, fmt.Errorf("%s is larger than %d bytes: %w", f.Name, limit, kv.ErrQuotaExceeded)
	}

	typ := f.Type
	if typ == "" {
		typ = http.DetectContentType(data)
	}

	return Attachment{
		Name: norm.NFC.String(f.Name),
		Size: int64(len(data)),
		Type: typ,
		Data: dataURI(typ, data),
	}, nil
}

func dataURI(typ string, data []byte) string {
	if typ == "" {
		typ = defaultType
	}
	return "data:" + typ + ";base64," + base64.StdEncoding.EncodeToString(data)
}

var errBadDataURI = errors.New("malformed data URI")

// Bytes decodes the attachment's data URI.
func (a Attachment) Bytes() ([]byte, error) {
	rest, ok := strings.CutPrefix(a.Data, "data:")
	if !ok {
		return nil, errBadDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errBadDataURI
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadDataURI, err)
		}
		return data, nil
	}
	return []byte(payload), nil
}

// Save writes the attachment into dir under its own name and returns the
// path written. An existing file is not overwritten.
func (e Entry) Save(dir string) (string, error) {
	data, err := e.Bytes()
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", e.Key, err)
	}

	name := filepath.Base(e.Name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = strings.TrimPrefix(e.Key, Prefix)
	}
	path := filepath.Join(dir, name)

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := out.Write(data); err != nil {
		out.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
