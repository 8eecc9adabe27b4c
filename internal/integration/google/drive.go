package google

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveFile is a downloaded drive object.
type DriveFile struct {
	Name     string
	MimeType string
	Content  []byte
}

type DriveClient interface {
	Download(ctx context.Context, refreshToken, fileID string) (*DriveFile, error)
}

type driveClient struct {
	oauth OAuthClient
}

func NewDriveClient(oauth OAuthClient) DriveClient {
	return &driveClient{oauth: oauth}
}

func (c *driveClient) Download(ctx context.Context, refreshToken, fileID string) (*DriveFile, error) {
	ts := c.oauth.TokenSource(ctx, refreshToken, KindCalendar)
	svc, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	meta, err := svc.Files.Get(fileID).Fields("name", "mimeType", "size").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get drive file metadata: %w", err)
	}

	// Google-native documents have no binary form and must be exported.
	mimeType := meta.MimeType
	var resp *http.Response
	if strings.HasPrefix(meta.MimeType, "application/vnd.google-apps") {
		mimeType = "application/pdf"
		resp, err = svc.Files.Export(fileID, mimeType).Context(ctx).Download()
	} else {
		resp, err = svc.Files.Get(fileID).Context(ctx).Download()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download drive file: %w", err)
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive file: %w", err)
	}

	return &DriveFile{
		Name:     meta.Name,
		MimeType: mimeType,
		Content:  content,
	}, nil
}
