package api

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

var ErrInvalidLimit = errors.New("invalid limit")

// ParseID reads a positive integer path parameter.
func ParseID(c *gin.Context, name string) (uint, error) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// ParseExternalID reads a signed integer path parameter such as a beatmap's
// external id.
func ParseExternalID(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

// ParseLimit reads the limit query parameter. An absent limit yields def;
// anything that is not an integer in [1, max] is rejected.
func ParseLimit(c *gin.Context, def, max int) (int, error) {
	raw, ok := c.GetQuery("limit")
	if !ok {
		return def, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > max {
		return 0, fmt.Errorf("%w: must be an integer between 1 and %d", ErrInvalidLimit, max)
	}
	return limit, nil
}
