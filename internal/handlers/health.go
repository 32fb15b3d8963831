package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/visicontrol/visicontrol/internal/database"
	"github.com/visicontrol/visicontrol/internal/realtime"
	"github.com/visicontrol/visicontrol/pkg/errors"
	"github.com/visicontrol/visicontrol/pkg/response"
)

const serviceName = "visicontrol-api"

// Health reports the store clock and the number of users with live streams.
// A failing store yields a 503.
func Health(db *gorm.DB, hub *realtime.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		dbTime, err := database.CurrentTimestamp(requestContext(c), db)
		if err != nil {
			response.Error(c, errors.New("STORE_UNAVAILABLE", "database unavailable", http.StatusServiceUnavailable).WithInternal(err))
			return
		}

		liveUsers := 0
		if hub != nil {
			liveUsers = hub.UserCount()
		}

		response.OK(c, gin.H{
			"service":    serviceName,
			"db_time":    dbTime,
			"live_users": liveUsers,
		})
	}
}
