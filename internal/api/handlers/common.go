package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"agrolink/api/internal/api/middleware"
	"agrolink/api/internal/apperr"
	"agrolink/api/internal/services"
)

// respond writes a success body: {success:true, ...payload}.
func respond(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.JSON(status, body)
}

// fail hands err to middleware.ErrorHandler.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
}

func currentActor(c *gin.Context) (services.Actor, bool) {
	actor, found := middleware.ActorFrom(c)
	if !found {
		fail(c, apperr.Unauthorized("Authentication required"))
	}
	return actor, found
}

func pathID(c *gin.Context, param string) (primitive.ObjectID, bool) {
	id, err := parseObjectID(c.Param(param), param)
	if err != nil {
		fail(c, err)
		return primitive.NilObjectID, false
	}
	return id, true
}

func parseObjectID(hex, field string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, apperr.BadRequest("Invalid " + field)
	}
	return id, nil
}

func bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		if errors.Is(err, io.EOF) {
			fail(c, apperr.BadRequest("Request body required"))
		} else {
			fail(c, apperr.BadRequest("Invalid request body"))
		}
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def int64) int64 {
	v, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// effectSummary lists the side effects that did not go through so clients
// can surface them. Nil when everything succeeded.
func effectSummary(effects []services.EffectResult) []string {
	var failed []string
	for _, e := range effects {
		if !e.OK() {
			failed = append(failed, e.Name)
		}
	}
	return failed
}

func withEffects(payload gin.H, effects []services.EffectResult) gin.H {
	if failed := effectSummary(effects); len(failed) > 0 {
		payload["failedEffects"] = failed
	}
	return payload
}

func created(c *gin.Context, payload gin.H) {
	respond(c, http.StatusCreated, payload)
}

func ok(c *gin.Context, payload gin.H) {
	respond(c, http.StatusOK, payload)
}
