package http

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/importer"
	"github.com/mealkeeper/mealkeeper/internal/services"
)

// BackupController exposes the import/export and cloud backup API.
type BackupController struct {
	service *services.BackupService
}

func NewBackupController(service *services.BackupService) *BackupController {
	return &BackupController{service: service}
}

// Preview handles POST /api/backup/preview. It parses and validates an
// uploaded archive and reports its contents without importing.
func (bc *BackupController) Preview(c *gin.Context) {
	tempDir, err := os.MkdirTemp("", "mealkeeper-upload-*")
	if err != nil {
		respondInternalError(c, "preview", err)
		return
	}
	defer os.RemoveAll(tempDir)

	archivePath, err := saveUploadedArchive(c, "file", tempDir)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	preview, err := bc.service.PreviewBundle(archivePath)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Import handles POST /api/backup/import. Multipart form with the
// archive in "file", plus "mode" and, for replace mode, "password".
func (bc *BackupController) Import(c *gin.Context) {
	mode, err := importer.ParseMode(c.DefaultPostForm("mode", string(importer.ModeMerge)))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	tempDir, err := os.MkdirTemp("", "mealkeeper-upload-*")
	if err != nil {
		respondInternalError(c, "import", err)
		return
	}
	defer os.RemoveAll(tempDir)

	archivePath, err := saveUploadedArchive(c, "file", tempDir)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	stats, err := bc.service.ImportBundle(GetAccountID(c), archivePath, mode, c.PostForm("password"))
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Export handles GET /api/backup/export, streaming a freshly generated
// archive as a download.
func (bc *BackupController) Export(c *gin.Context) {
	path, _, err := bc.service.ExportBundle(GetAccountID(c))
	if err != nil {
		respondInternalError(c, "export", err)
		return
	}
	defer os.Remove(path)

	c.FileAttachment(path, filepath.Base(path))
}

// BackupToCloud handles POST /api/backup/cloud/:provider.
func (bc *BackupController) BackupToCloud(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}

	info, err := bc.service.BackupToCloud(c.Request.Context(), GetAccountID(c), kind)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// ListRemote handles GET /api/backup/cloud/:provider.
func (bc *BackupController) ListRemote(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", 0)
	backups, err := bc.service.ListRemoteBackups(c.Request.Context(), GetAccountID(c), kind, limit)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": backups})
}

type restoreRequest struct {
	BackupID string `json:"backup_id" binding:"required"`
	Mode     string `json:"mode"`
	Password string `json:"password"`
}

// RestoreFromCloud handles POST /api/backup/cloud/:provider/restore.
func (bc *BackupController) RestoreFromCloud(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}

	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if req.Mode == "" {
		req.Mode = string(importer.ModeReplace)
	}
	mode, err := importer.ParseMode(req.Mode)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	stats, err := bc.service.RestoreFromCloud(c.Request.Context(), GetAccountID(c), kind, req.BackupID, mode, req.Password)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// PreviewRemote handles GET /api/backup/cloud/:provider/preview. The
// backup id is passed as a query parameter because provider ids can
// contain slashes.
func (bc *BackupController) PreviewRemote(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}
	backupID := c.Query("id")
	if backupID == "" {
		respondBadRequest(c, "missing id query parameter")
		return
	}

	preview, err := bc.service.PreviewRemoteBackup(c.Request.Context(), GetAccountID(c), kind, backupID)
	if err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// DeleteRemote handles DELETE /api/backup/cloud/:provider. The backup id
// is passed as a query parameter because provider ids can contain
// slashes.
func (bc *BackupController) DeleteRemote(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}
	backupID := c.Query("id")
	if backupID == "" {
		respondBadRequest(c, "missing id query parameter")
		return
	}

	if err := bc.service.DeleteRemoteBackup(c.Request.Context(), GetAccountID(c), kind, backupID); err != nil {
		respondPipelineError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": backupID})
}

// History handles GET /api/backup/history.
func (bc *BackupController) History(c *gin.Context) {
	records, err := bc.service.BackupHistory(GetAccountID(c), queryInt(c, "limit", 50))
	if err != nil {
		respondInternalError(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"backups": records})
}

// AuditTrail handles GET /api/backup/audit.
func (bc *BackupController) AuditTrail(c *gin.Context) {
	events, err := bc.service.AuditTrail(GetAccountID(c), queryInt(c, "limit", 50))
	if err != nil {
		respondInternalError(c, "audit trail", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// UsageStats handles GET /api/backup/usage.
func (bc *BackupController) UsageStats(c *gin.Context) {
	stats, err := bc.service.UsageStats(GetAccountID(c))
	if err != nil {
		respondInternalError(c, "usage stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func providerParam(c *gin.Context) (entities.ProviderKind, bool) {
	kind := entities.ProviderKind(c.Param("provider"))
	if !entities.ValidProviderKind(kind) {
		respondBadRequest(c, "unknown provider "+c.Param("provider"))
		return "", false
	}
	return kind, true
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
