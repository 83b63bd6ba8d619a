// Package upload stages multipart files, validates them against a per-step
// profile and transfers each accepted batch to a remote folder.
package upload

import (
	"path/filepath"
	"slices"
	"strings"

	"kycdesk/internal/kyc/models"
)

const (
	MB = 1 << 20

	documentMaxSize = 5 * MB
	bundleMaxSize   = 25 * MB
)

// Kind is a family of accepted file extensions.
type Kind string

const (
	KindImage    Kind = "image"
	KindVideo    Kind = "video"
	KindDocument Kind = "document"
)

var extensions = map[Kind][]string{
	KindImage:    {".jpg", ".jpeg", ".png", ".gif", ".bmp", ".webp", ".heic", ".heif", ".tiff", ".tif"},
	KindVideo:    {".webm", ".mp4", ".mov", ".avi", ".mkv", ".3gp", ".m4v"},
	KindDocument: {".pdf"},
}

// Field is one required file of an upload.
type Field struct {
	Name   string
	Prefix string
	Kinds  []Kind
}

// Accepts reports whether ext (with leading dot, any case) is allowed for f.
func (f Field) Accepts(ext string) bool {
	ext = strings.ToLower(ext)
	for _, k := range f.Kinds {
		if slices.Contains(extensions[k], ext) {
			return true
		}
	}
	return false
}

// Profile describes what one upload endpoint accepts and where it goes.
type Profile struct {
	Name        string
	Step        models.Step
	Subfolder   string
	Fields      []Field
	MaxFileSize int64
	MaxFiles    int
}

func (p Profile) field(name string) (Field, bool) {
	for _, f := range p.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

var (
	IDProfile = Profile{
		Name:      "id",
		Step:      models.StepIDUploaded,
		Subfolder: "ID",
		Fields: []Field{
			{Name: "frontImage", Prefix: "frontIDimage", Kinds: []Kind{KindImage}},
			{Name: "backImage", Prefix: "backIDimage", Kinds: []Kind{KindImage}},
		},
		MaxFileSize: documentMaxSize,
		MaxFiles:    2,
	}

	AddressProfile = Profile{
		Name:      "address",
		Step:      models.StepAddressUploaded,
		Subfolder: "address",
		Fields: []Field{
			{Name: "addressProof", Prefix: "addressProof", Kinds: []Kind{KindImage, KindDocument}},
		},
		MaxFileSize: documentMaxSize,
		MaxFiles:    1,
	}

	VerificationProfile = Profile{
		Name:      "verification",
		Step:      models.StepBiometricsUploaded,
		Subfolder: "Face ID Proof",
		Fields: []Field{
			{Name: "front_pose", Prefix: "frontpose", Kinds: []Kind{KindImage}},
			{Name: "left_pose", Prefix: "leftpose", Kinds: []Kind{KindImage}},
			{Name: "right_pose", Prefix: "rightpose", Kinds: []Kind{KindImage}},
			{Name: "verification_video", Prefix: "verification", Kinds: []Kind{KindVideo}},
		},
		MaxFileSize: bundleMaxSize,
		MaxFiles:    4,
	}
)

// MaxRequestSize bounds the whole multipart body for p, leaving room for form fields.
func (p Profile) MaxRequestSize() int64 {
	return p.MaxFileSize*int64(p.MaxFiles) + MB
}

func extOf(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
