package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/storage"
)

const (
	driveAPIURL    = "https://www.googleapis.com/drive/v3"
	driveUploadURL = "https://www.googleapis.com/upload/drive/v3"

	folderMimeType = "application/vnd.google-apps.folder"
)

// Client implements storage.Client for Google Drive. Backups live in a
// per-account subfolder of an app-managed root folder.
type Client struct {
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// NewClient creates a new Google Drive storage client.
func NewClient(tokenSource oauth2.TokenSource) *Client {
	return &Client{
		tokenSource: tokenSource,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Kind() entities.ProviderKind {
	return entities.ProviderKindDrive
}

func (c *Client) apiError(op string, status int, body []byte) error {
	return &storage.ProviderError{
		Provider: entities.ProviderKindDrive,
		Op:       op,
		Err:      fmt.Errorf("API error (status %d): %s", status, string(body)),
	}
}

type driveFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MimeType     string    `json:"mimeType"`
	Size         string    `json:"size"`
	CreatedTime  time.Time `json:"createdTime"`
	ModifiedTime time.Time `json:"modifiedTime"`
}

type fileListResponse struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

func (c *Client) UploadBackup(ctx context.Context, accountID uint, localPath string, backupType entities.BackupType) (*storage.BackupInfo, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	folderID, err := c.ensureBackupFolder(ctx, token, accountID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	metadata := map[string]any{
		"name":    filepath.Base(localPath),
		"parents": []string{folderID},
	}
	metadataBytes, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata part: %w", err)
	}
	if _, err := metaPart.Write(metadataBytes); err != nil {
		return nil, fmt.Errorf("failed to write metadata part: %w", err)
	}

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Type", "application/zip")
	filePart, err := writer.CreatePart(fileHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := filePart.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	uploadURL := driveUploadURL + "/files?uploadType=multipart&fields=id,name,size,createdTime,modifiedTime"
	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "multipart/related; boundary="+writer.Boundary())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, c.apiError("upload", resp.StatusCode, respBody)
	}

	var uploaded driveFile
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &storage.BackupInfo{
		ID:        uploaded.ID,
		Filename:  uploaded.Name,
		Size:      int64(len(data)),
		Timestamp: timestampOf(uploaded),
		Type:      backupType,
	}, nil
}

func (c *Client) ListBackups(ctx context.Context, accountID uint, limit int) ([]storage.BackupInfo, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	folderID, err := c.findFolder(ctx, token, accountFolderName(accountID), "")
	if err != nil {
		return nil, err
	}
	if folderID == "" {
		return nil, nil
	}

	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", folderID, folderMimeType)

	var backups []storage.BackupInfo
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", query)
		params.Set("fields", "nextPageToken, files(id,name,size,createdTime,modifiedTime)")
		params.Set("orderBy", "modifiedTime desc")
		params.Set("pageSize", "100")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		listResp, err := c.listFiles(ctx, token, params)
		if err != nil {
			return nil, err
		}

		for _, f := range listResp.Files {
			backups = append(backups, storage.BackupInfo{
				ID:        f.ID,
				Filename:  f.Name,
				Size:      parseSize(f.Size),
				Timestamp: timestampOf(f),
				Type:      backupTypeFromName(f.Name),
			})
			if limit > 0 && len(backups) >= limit {
				return backups, nil
			}
		}

		if listResp.NextPageToken == "" {
			return backups, nil
		}
		pageToken = listResp.NextPageToken
	}
}

func (c *Client) DownloadBackup(ctx context.Context, accountID uint, backupID string) (string, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", driveAPIURL+"/files/"+url.PathEscape(backupID)+"?alt=media", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", c.apiError("download", resp.StatusCode, body)
	}

	tmpFile, err := os.CreateTemp("", "mealkeeper-download-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmpFile.Close()

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to write downloaded backup: %w", err)
	}
	return tmpFile.Name(), nil
}

func (c *Client) DeleteBackup(ctx context.Context, accountID uint, backupID string) error {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "DELETE", driveAPIURL+"/files/"+url.PathEscape(backupID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return c.apiError("delete", resp.StatusCode, body)
	}
	return nil
}

func accountFolderName(accountID uint) string {
	return fmt.Sprintf("mealkeeper-backups-account-%d", accountID)
}

// ensureBackupFolder finds or creates the account's backup folder and
// returns its file ID.
func (c *Client) ensureBackupFolder(ctx context.Context, token string, accountID uint) (string, error) {
	name := accountFolderName(accountID)

	folderID, err := c.findFolder(ctx, token, name, "")
	if err != nil {
		return "", err
	}
	if folderID != "" {
		return folderID, nil
	}

	metadata := map[string]any{
		"name":     name,
		"mimeType": folderMimeType,
	}
	bodyBytes, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to marshal folder metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", driveAPIURL+"/files?fields=id", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", c.apiError("create folder", resp.StatusCode, body)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return created.ID, nil
}

func (c *Client) findFolder(ctx context.Context, token, name, parentID string) (string, error) {
	query := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", strings.ReplaceAll(name, "'", "\\'"), folderMimeType)
	if parentID != "" {
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("fields", "files(id)")
	params.Set("pageSize", "1")

	listResp, err := c.listFiles(ctx, token, params)
	if err != nil {
		return "", err
	}
	if len(listResp.Files) == 0 {
		return "", nil
	}
	return listResp.Files[0].ID, nil
}

func (c *Client) listFiles(ctx context.Context, token string, params url.Values) (fileListResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", driveAPIURL+"/files?"+params.Encode(), nil)
	if err != nil {
		return fileListResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fileListResponse{}, fmt.Errorf("failed to list files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fileListResponse{}, c.apiError("list", resp.StatusCode, body)
	}

	var listResp fileListResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return fileListResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return listResp, nil
}

func parseSize(s string) int64 {
	var size int64
	fmt.Sscanf(s, "%d", &size)
	return size
}

func timestampOf(f driveFile) time.Time {
	if !f.ModifiedTime.IsZero() {
		return f.ModifiedTime
	}
	return f.CreatedTime
}

func backupTypeFromName(name string) entities.BackupType {
	if strings.Contains(name, string(entities.BackupTypeAutomatic)) {
		return entities.BackupTypeAutomatic
	}
	return entities.BackupTypeManual
}
