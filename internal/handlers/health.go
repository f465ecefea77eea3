package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/charlesng35/talenthub/internal/database"
	"github.com/charlesng35/talenthub/pkg/errors"
	"github.com/charlesng35/talenthub/pkg/response"
)

// Health reports liveness and whether the database answers a ping.
func Health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			if err := database.Ping(db); err != nil {
				response.Error(c, errors.New("DATABASE_UNAVAILABLE", "Database unavailable", http.StatusServiceUnavailable))
				return
			}
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}
