package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealkeeper/mealkeeper/internal/entities"
	"github.com/mealkeeper/mealkeeper/internal/oauth2"
	"github.com/mealkeeper/mealkeeper/internal/tokenstore"
)

// ProvidersController manages cloud provider connections: the OAuth
// authorization flow, connection status and disconnect.
type ProvidersController struct {
	flow  *oauth2.FlowHandler
	creds *tokenstore.Store
}

func NewProvidersController(flow *oauth2.FlowHandler, creds *tokenstore.Store) *ProvidersController {
	return &ProvidersController{flow: flow, creds: creds}
}

type connectRequest struct {
	RedirectURL string `json:"redirect_url" binding:"required"`
}

// Connect handles POST /api/providers/:provider/connect and returns the
// authorization URL the client should open.
func (pc *ProvidersController) Connect(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	authURL, err := pc.flow.Start(GetAccountID(c), kind, req.RedirectURL)
	if err != nil {
		respondInternalError(c, "provider connect", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"auth_url": authURL})
}

// Callback handles GET /api/providers/callback with the state and code
// query parameters from the provider.
func (pc *ProvidersController) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		respondBadRequest(c, "missing state or code")
		return
	}

	cred, err := pc.flow.Complete(c.Request.Context(), state, code)
	if err != nil {
		if errors.Is(err, oauth2.ErrStateMismatch) {
			c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "state_mismatch"})
			return
		}
		respondInternalError(c, "provider callback", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connected": cred.Provider})
}

// Status handles GET /api/providers and reports which providers the
// account has connected.
func (pc *ProvidersController) Status(c *gin.Context) {
	accountID := GetAccountID(c)

	connected := map[string]bool{}
	for _, kind := range []entities.ProviderKind{entities.ProviderKindDropbox, entities.ProviderKindDrive} {
		has, err := pc.creds.HasCredential(accountID, kind)
		if err != nil {
			respondInternalError(c, "provider status", err)
			return
		}
		connected[string(kind)] = has
	}
	c.JSON(http.StatusOK, gin.H{"providers": connected})
}

// Disconnect handles DELETE /api/providers/:provider.
func (pc *ProvidersController) Disconnect(c *gin.Context) {
	kind, ok := providerParam(c)
	if !ok {
		return
	}

	if err := pc.creds.Delete(GetAccountID(c), kind); err != nil {
		respondInternalError(c, "provider disconnect", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disconnected": kind})
}
