package handlers

import (
	"strconv"

	"github.com/bugdesk/bugdesk/pkg/response"
	"github.com/gin-gonic/gin"
)

// uintParam reads a numeric path parameter. On failure it writes a 400 and
// returns false.
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, err.Error())
		return false
	}
	return true
}
