package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/storage"
)

const (
	dropboxAPIURL     = "https://api.dropboxapi.com/2"
	dropboxContentURL = "https://content.dropboxapi.com/2"

	backupFolder = "/mealkeeper/backups"
)

// Client implements storage.Client for Dropbox.
type Client struct {
	tokenSource oauth2.TokenSource
	httpClient  *http.Client
}

// NewClient creates a new Dropbox storage client.
func NewClient(tokenSource oauth2.TokenSource) *Client {
	return &Client{
		tokenSource: tokenSource,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) Kind() entities.ProviderKind {
	return entities.ProviderKindDropbox
}

func accountFolder(accountID uint) string {
	return fmt.Sprintf("%s/account-%d", backupFolder, accountID)
}

func (c *Client) apiError(op string, status int, body []byte) error {
	return &storage.ProviderError{
		Provider: entities.ProviderKindDropbox,
		Op:       op,
		Err:      fmt.Errorf("API error (status %d): %s", status, string(body)),
	}
}

func (c *Client) UploadBackup(ctx context.Context, accountID uint, localPath string, backupType entities.BackupType) (*storage.BackupInfo, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}

	remotePath := path.Join(accountFolder(accountID), path.Base(localPath))

	uploadArg := map[string]any{
		"path":            remotePath,
		"mode":            "overwrite",
		"autorename":      false,
		"mute":            true,
		"strict_conflict": false,
	}
	uploadArgBytes, err := json.Marshal(uploadArg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upload arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", dropboxContentURL+"/files/upload", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Dropbox-API-Arg", string(uploadArgBytes))
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, c.apiError("upload", resp.StatusCode, body)
	}

	var uploaded struct {
		ID             string    `json:"id"`
		Name           string    `json:"name"`
		PathDisplay    string    `json:"path_display"`
		Size           int64     `json:"size"`
		ServerModified time.Time `json:"server_modified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &storage.BackupInfo{
		ID:        uploaded.PathDisplay,
		Filename:  uploaded.Name,
		Size:      uploaded.Size,
		Path:      uploaded.PathDisplay,
		Timestamp: uploaded.ServerModified,
		Type:      backupType,
	}, nil
}

// listFolderResponse represents the response from the list_folder API.
type listFolderResponse struct {
	Entries []listEntry `json:"entries"`
	Cursor  string      `json:"cursor"`
	HasMore bool        `json:"has_more"`
}

type listEntry struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathLower      string    `json:"path_lower"`
	PathDisplay    string    `json:"path_display"`
	ID             string    `json:"id"`
	ServerModified time.Time `json:"server_modified"`
	Size           int64     `json:"size"`
}

func (c *Client) ListBackups(ctx context.Context, accountID uint, limit int) ([]storage.BackupInfo, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	requestBody := map[string]any{
		"path":                           accountFolder(accountID),
		"recursive":                      false,
		"include_deleted":                false,
		"include_non_downloadable_files": false,
	}

	listResp, err := c.listFolder(ctx, token, "/files/list_folder", requestBody)
	if err != nil {
		// A folder that was never written to does not exist yet.
		if isPathNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	entries := listResp.Entries
	for listResp.HasMore {
		listResp, err = c.listFolder(ctx, token, "/files/list_folder/continue", map[string]any{"cursor": listResp.Cursor})
		if err != nil {
			return nil, err
		}
		entries = append(entries, listResp.Entries...)
	}

	backups := make([]storage.BackupInfo, 0, len(entries))
	for _, e := range entries {
		if e.Tag != "file" {
			continue
		}
		backups = append(backups, storage.BackupInfo{
			ID:        e.PathDisplay,
			Filename:  e.Name,
			Size:      e.Size,
			Path:      e.PathDisplay,
			Timestamp: e.ServerModified,
			Type:      backupTypeFromName(e.Name),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})
	if limit > 0 && len(backups) > limit {
		backups = backups[:limit]
	}
	return backups, nil
}

func (c *Client) listFolder(ctx context.Context, token, endpoint string, requestBody map[string]any) (listFolderResponse, error) {
	bodyBytes, err := json.Marshal(requestBody)
	if err != nil {
		return listFolderResponse{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", dropboxAPIURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return listFolderResponse{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return listFolderResponse{}, fmt.Errorf("failed to list folder: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return listFolderResponse{}, c.apiError("list", resp.StatusCode, body)
	}

	var listResp listFolderResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return listFolderResponse{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return listResp, nil
}

func (c *Client) DownloadBackup(ctx context.Context, accountID uint, backupID string) (string, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	pathArgBytes, err := json.Marshal(map[string]string{"path": backupID})
	if err != nil {
		return "", fmt.Errorf("failed to marshal path arg: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", dropboxContentURL+"/files/download", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Dropbox-API-Arg", string(pathArgBytes))

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

	bodyBytes, err := json.Marshal(map[string]string{"path": backupID})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", dropboxAPIURL+"/files/delete_v2", bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return c.apiError("delete", resp.StatusCode, body)
	}
	return nil
}

// isPathNotFound detects the Dropbox 409 path/not_found error shape.
func isPathNotFound(err error) bool {
	var perr *storage.ProviderError
	if !errors.As(err, &perr) {
		return false
	}
	return strings.Contains(perr.Err.Error(), "path/not_found")
}

func backupTypeFromName(name string) entities.BackupType {
	if strings.Contains(name, string(entities.BackupTypeAutomatic)) {
		return entities.BackupTypeAutomatic
	}
	return entities.BackupTypeManual
}
