// Package validator rejects audio uploads that break the size, format or
// extension policy. It is pure: it never touches storage or the database.
package validator

import (
	"audio-service/apperror"
	"fmt"
	"mime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const DefaultMaxSize int64 = 100 * 1024 * 1024

var (
	DefaultContentTypes = []string{"audio/mpeg", "audio/wav", "audio/mp4", "audio/x-m4a", "audio/ogg"}
	DefaultExtensions   = []string{"mp3", "wav", "m4a", "ogg"}
)

// extensionTypes maps the audio extensions to the content type recorded
// when the client sent none and sniffing found nothing acceptable.
var extensionTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"m4a":  "audio/mp4",
	"ogg":  "audio/ogg",
	"flac": "audio/flac",
	"aac":  "audio/aac",
}

type Policy struct {
	MaxSize      int64
	ContentTypes []string
	Extensions   []string
}

func DefaultPolicy() Policy {
	return Policy{
		MaxSize:      DefaultMaxSize,
		ContentTypes: DefaultContentTypes,
		Extensions:   DefaultExtensions,
	}
}

// Upload describes an incoming file as declared by the client. Empty
// Filename or ContentType mean the client did not send one.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
}

type AudioValidator struct {
	maxSize      int64
	accepted     []string
	contentTypes map[string]struct{}
	extensions   map[string]struct{}
}

// NewAudioValidator builds a validator for p. Zero fields fall back to the
// defaults.
func NewAudioValidator(p Policy) *AudioValidator {
	if p.MaxSize <= 0 {
		p.MaxSize = DefaultMaxSize
	}
	if len(p.ContentTypes) == 0 {
		p.ContentTypes = DefaultContentTypes
	}
	if len(p.Extensions) == 0 {
		p.Extensions = DefaultExtensions
	}
	v := &AudioValidator{
		maxSize:      p.MaxSize,
		contentTypes: make(map[string]struct{}, len(p.ContentTypes)),
		extensions:   make(map[string]struct{}, len(p.Extensions)),
	}
	for _, ct := range p.ContentTypes {
		ct = normalizeContentType(ct)
		v.contentTypes[ct] = struct{}{}
		v.accepted = append(v.accepted, ct)
	}
	for _, ext := range p.Extensions {
		v.extensions[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	return v
}

func (v *AudioValidator) MaxSize() int64 {
	return v.maxSize
}

func (v *AudioValidator) Validate(u Upload) error {
	if u.Size <= 0 {
		return apperror.InvalidRequest("Audio file cannot be empty")
	}
	if u.Size > v.maxSize {
		return apperror.InvalidRequest(fmt.Sprintf("Audio file size must not exceed %s", humanize.IBytes(uint64(v.maxSize))))
	}

	// A missing content type is tolerated; the extension decides.
	if u.ContentType != "" {
		if _, ok := v.contentTypes[normalizeContentType(u.ContentType)]; !ok {
			return apperror.InvalidRequest("Unsupported audio format")
		}
	}

	if u.Filename == "" {
		return apperror.InvalidRequest("Unsupported audio format")
	}
	ext := Extension(u.Filename)
	if ext == "" {
		return apperror.InvalidRequest("Unsupported audio format")
	}
	if _, ok := v.extensions[ext]; !ok {
		return apperror.InvalidRequest("Unsupported audio format")
	}
	return nil
}

// ResolveContentType picks the content type to record for an upload whose
// client sent none. The sniffed type wins when it, or one of its aliases, is
// accepted; otherwise the type implied by the extension of filename is used.
// filename must already have passed Validate.
func (v *AudioValidator) ResolveContentType(sniffed *mimetype.MIME, filename string) string {
	if sniffed != nil {
		for _, ct := range v.accepted {
			if sniffed.Is(ct) {
				return ct
			}
		}
	}

	ext := Extension(filename)
	ct, ok := extensionTypes[ext]
	if !ok {
		ct = normalizeContentType(mime.TypeByExtension("." + ext))
	}
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

// Extension returns the lower-cased text after the last dot of the final
// path element of name, or "" when there is none.
func Extension(name string) string {
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return ""
	}
	ext := name[i+1:]
	if strings.ContainsAny(ext, `/\`) {
		return ""
	}
	return strings.ToLower(ext)
}

func normalizeContentType(ct string) string {
	mediaType, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(mediaType))
}
