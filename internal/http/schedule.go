package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealkeeper/mealkeeper/internal/services"
)

// ScheduleController manages the automatic-backup schedule API.
type ScheduleController struct {
	service *services.BackupService
}

func NewScheduleController(service *services.BackupService) *ScheduleController {
	return &ScheduleController{service: service}
}

// Get handles GET /api/backup/schedule.
func (sc *ScheduleController) Get(c *gin.Context) {
	schedule, err := sc.service.GetSchedule(GetAccountID(c))
	if err != nil {
		respondInternalError(c, "get schedule", err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// Update handles PUT /api/backup/schedule.
func (sc *ScheduleController) Update(c *gin.Context) {
	var input services.ScheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	schedule, err := sc.service.UpdateSchedule(GetAccountID(c), input)
	if err != nil {
		var notConnected *services.ProviderNotConnectedError
		if errors.As(err, &notConnected) {
			c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "provider_not_connected"})
			return
		}
		respondBadRequest(c, err.Error())
		return
	}
	c.JSON(http.StatusOK, schedule)
}
