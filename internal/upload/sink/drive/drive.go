// Package drive stores uploads in Google Drive folders.
package drive

import (
	"context"
	"fmt"
	"io"
	"strings"

	driveapi "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"kycdesk/internal/upload"
	"kycdesk/pkg/platform/sentinel"
)

const folderMimeType = "application/vnd.google-apps.folder"

type Sink struct {
	files        *driveapi.FilesService
	rootFolderID string
}

// New builds a Drive client. rootFolderID is where client folders are created
// and may be empty when folders are always supplied by the caller.
func New(ctx context.Context, rootFolderID string, opts ...option.ClientOption) (*Sink, error) {
	svc, err := driveapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &Sink{files: svc.Files, rootFolderID: rootFolderID}, nil
}

// FolderLink is the browser link of a Drive folder.
func FolderLink(folderID string) string {
	return "https://drive.google.com/drive/folders/" + folderID
}

func (s *Sink) CreateClientFolder(ctx context.Context, clientName string) (string, error) {
	if s.rootFolderID == "" {
		return "", fmt.Errorf("drive root folder not configured: %w", sentinel.ErrInvalidState)
	}
	created, err := s.createFolder(ctx, s.rootFolderID, clientName, "id, webViewLink")
	if err != nil {
		return "", err
	}
	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return FolderLink(created.Id), nil
}

func (s *Sink) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	q := fmt.Sprintf("'%s' in parents and name='%s' and mimeType='%s' and trashed=false",
		escape(parentID), escape(name), folderMimeType)
	list, err := s.files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("find folder %q: %w", name, err)
	}
	if len(list.Files) > 0 {
		return list.Files[0].Id, nil
	}
	created, err := s.createFolder(ctx, parentID, name, "id")
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (s *Sink) createFolder(ctx context.Context, parentID, name, fields string) (*driveapi.File, error) {
	created, err := s.files.Create(&driveapi.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}).Fields(googleapi.Field(fields)).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("create folder %q: %w", name, err)
	}
	return created, nil
}

func (s *Sink) Put(ctx context.Context, folderID, name, contentType string, body io.Reader) (upload.Stored, error) {
	created, err := s.files.Create(&driveapi.File{
		Name:     name,
		Parents:  []string{folderID},
		MimeType: contentType,
	}).
		Media(body, googleapi.ContentType(contentType)).
		Fields("id, webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return upload.Stored{}, fmt.Errorf("upload %s: %w", name, err)
	}
	return upload.Stored{ID: created.Id, Link: created.WebViewLink}, nil
}

// escape quotes a value for a Drive search query.
func escape(v string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(v)
}
