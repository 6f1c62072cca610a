package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/attachlink/internal/common"
	"github.com/dmitrijs2005/attachlink/internal/descriptor"
	"github.com/dmitrijs2005/attachlink/internal/logging"
	"github.com/dmitrijs2005/attachlink/internal/transfer"
)

const multipartMemory = 32 << 20

type handler struct {
	svc         Service
	logger      logging.Logger
	cacheMaxAge time.Duration
	now         func() time.Time
}

func (h *handler) clock() time.Time {
	if h.now != nil {
		return h.now()
	}
	return time.Now()
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	var d descriptor.Descriptor

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			writeError(r.Context(), w, h.logger, err)
			return
		}
		writeError(r.Context(), w, h.logger, fmt.Errorf("%w: invalid JSON body: %v", common.ErrBadRequest, err))
		return
	}

	tok, err := h.svc.Issue(r.Context(), d)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

// formFile pulls the "file" part out of a multipart request.
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("%w: invalid multipart body: %v", common.ErrBadRequest, err)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, nil, fmt.Errorf("%w: missing file", common.ErrBadRequest)
	}
	return f, hdr, nil
}

func cleanupForm(r *http.Request) {
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func (h *handler) upload(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)

	f, hdr, err := formFile(r)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	defer f.Close()

	tok, err := h.svc.Store(r.Context(), transfer.Upload{
		Body:        f,
		Size:        hdr.Size,
		FileName:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		ExpiredAt:   r.FormValue("expiredAt"),
	})
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *handler) scramble(w http.ResponseWriter, r *http.Request) {
	defer cleanupForm(r)

	f, hdr, err := formFile(r)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	contentType := hdr.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err != nil || mt == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	out, err := h.svc.Scramble(r.Context(), data, contentType)
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out)))
	w.Header().Set("Content-Disposition", contentDisposition(hdr.Filename, contentType))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(out))
}

func (h *handler) retrieve(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Retrieve(r.Context(), r.PathValue("digit"), r.PathValue("encrypted"))
	if err != nil {
		writeError(r.Context(), w, h.logger, err)
		return
	}
	defer c.Body.Close()

	hdr := w.Header()
	hdr.Set("Content-Type", c.ContentType)
	if c.ContentLength >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(c.ContentLength, 10))
	}
	hdr.Set("Content-Disposition", contentDisposition(c.FileName, c.ContentType))
	setCacheHeaders(hdr, c.ExpiresAt, h.cacheMaxAge, h.clock())
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, c.Body); err != nil {
		h.logger.Warn(r.Context(), "stream interrupted", "error", err.Error())
	}
}

// contentDisposition renders inline for media and attachment otherwise,
// with both the quoted and the RFC 5987 filename forms.
func contentDisposition(name, contentType string) string {
	kind := "attachment"
	if common.IsInlineType(contentType) {
		kind = "inline"
	}
	if name == "" {
		return kind
	}
	enc := escapeComponent(name)
	return fmt.Sprintf(`%s; filename="%s"; filename*=UTF-8''%s`, kind, enc, enc)
}

// escapeComponent percent-encodes every UTF-8 byte except ASCII letters,
// digits and -_.!~*'(), the set browsers leave alone in URI components.
func escapeComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9',
			strings.IndexByte("-_.!~*'()", c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
		}
	}
	return b.String()
}

// setCacheHeaders marks permanent content immutable for maxAge and expiring
// content cacheable only until it expires.
func setCacheHeaders(hdr http.Header, expiresAt time.Time, maxAge time.Duration, now time.Time) {
	if expiresAt.IsZero() {
		seconds := int64(common.CacheMaxAgeSeconds)
		if maxAge > 0 {
			seconds = int64(maxAge / time.Second)
		}
		hdr.Set("Cache-Control", fmt.Sprintf("public, max-age=%d, immutable", seconds))
		return
	}
	remaining := int64(expiresAt.Sub(now) / time.Second)
	remaining = min(max(remaining, 0), common.CacheMaxAgeSeconds)
	hdr.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", remaining))
	if expiresAt.Year() <= 9999 {
		hdr.Set("Expires", expiresAt.UTC().Format(http.TimeFormat))
	}
}
