package upload

import (
	"regexp"
	"time"

	dErrors "kycdesk/pkg/domain-errors"
)

const (
	maxClientLen  = 50
	unknownClient = "unknown"
)

var (
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
	folderIDToken = regexp.MustCompile(`[-\w]{25,}`)
)

// SanitizeClient makes a caller-supplied client label safe for file names.
func SanitizeClient(client string) string {
	cleaned := unsafeChars.ReplaceAllString(client, "_")
	if len(cleaned) > maxClientLen {
		cleaned = cleaned[:maxClientLen]
	}
	if cleaned == "" {
		return unknownClient
	}
	return cleaned
}

// ExtractFolderID pulls the opaque folder id out of a shareable folder link.
func ExtractFolderID(link string) (string, error) {
	id := folderIDToken.FindString(link)
	if id == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "Invalid folder link")
	}
	return id, nil
}

// FileName composes <prefix>_<client>_<YYYY-MM-DD><ext> using the UTC date.
func FileName(prefix, client string, at time.Time, ext string) string {
	return prefix + "_" + client + "_" + at.UTC().Format(time.DateOnly) + ext
}
