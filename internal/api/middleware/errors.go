package middleware

import (
	"log"

	"github.com/gin-gonic/gin"

	"agrolink/api/internal/apperr"
	"agrolink/api/internal/config"
)

// ErrorHandler renders the last error a handler attached with c.Error as
// {success:false, message, error?}. The error detail is only exposed in
// development.
func ErrorHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		appErr := apperr.From(c.Errors.Last().Err)
		if appErr.Status >= 500 {
			log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), appErr)
		}

		body := gin.H{"success": false, "message": appErr.Message}
		if cfg.IsDevelopment() {
			if detail := appErr.Detail(); detail != "" {
				body["error"] = detail
			}
		}
		c.JSON(appErr.Status, body)
	}
}
