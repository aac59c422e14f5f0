package http

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mealkeeper/mealkeeper/internal/bundle"
	"github.com/mealkeeper/mealkeeper/internal/importer"
	"github.com/mealkeeper/mealkeeper/internal/services"
	"github.com/mealkeeper/mealkeeper/internal/storage"
	"github.com/mealkeeper/mealkeeper/internal/validator"
)

// ContextKeyAccountID is the gin context key holding the acting account.
const ContextKeyAccountID = "accountID"

// DefaultAccountID is used in single-account mode.
const DefaultAccountID = uint(1)

// maxUploadSize caps uploaded backup archives (50 MB).
const maxUploadSize = 50 * 1024 * 1024

// AccountMiddleware resolves the acting account. Without an auth layer
// in front, the X-Account-ID header selects the account and the
// single-account default applies otherwise.
func AccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := DefaultAccountID
		if raw := c.GetHeader("X-Account-ID"); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 32); err == nil && id > 0 {
				accountID = uint(id)
			}
		}
		c.Set(ContextKeyAccountID, accountID)
		c.Next()
	}
}

// GetAccountID extracts the acting account's ID from the gin context.
func GetAccountID(c *gin.Context) uint {
	if v, ok := c.Get(ContextKeyAccountID); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return DefaultAccountID
}

// ErrorResponse is the standard error format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}

func respondInternalError(c *gin.Context, operation string, err error) {
	log.Printf("HTTP %s failed: %v", operation, err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: operation + " failed"})
}

// respondPipelineError maps the import pipeline's error taxonomy to
// status codes and machine-readable codes.
func respondPipelineError(c *gin.Context, err error) {
	var schemaErr *bundle.SchemaError
	var versionErr *bundle.IncompatibleVersionError
	var validationErr *validator.ValidationError
	var securityErr *services.SecurityError
	var notConnectedErr *services.ProviderNotConnectedError
	var txErr *importer.TransactionError
	var providerErr *storage.ProviderError

	switch {
	case errors.Is(err, bundle.ErrFileFormat):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "file_format"})
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "schema"})
	case errors.As(err, &versionErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "incompatible_version"})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Code: validationErr.Code})
	case errors.As(err, &securityErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "security"})
	case errors.As(err, &notConnectedErr):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "provider_not_connected"})
	case errors.As(err, &txErr):
		log.Printf("HTTP import transaction failed: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "import failed", Code: "transaction"})
	case errors.As(err, &providerErr):
		log.Printf("HTTP provider request failed: %v", err)
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "cloud provider request failed", Code: "provider"})
	default:
		respondInternalError(c, "import", err)
	}
}

// saveUploadedArchive writes the uploaded multipart file into dir and
// returns its path.
func saveUploadedArchive(c *gin.Context, field, dir string) (string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return "", fmt.Errorf("missing file field %q: %w", field, err)
	}
	if fileHeader.Size > maxUploadSize {
		return "", fmt.Errorf("file exceeds maximum size of %d bytes", maxUploadSize)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dstPath := filepath.Join(dir, filepath.Base(fileHeader.Filename))
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return dstPath, nil
}
