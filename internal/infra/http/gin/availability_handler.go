package ginserver

import (
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"rentacar/internal/app/dto"
	availabilityapp "rentacar/internal/app/handlers/availability"
	"rentacar/internal/app/queries"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

func (h AvailabilityHandler) Check(c *gin.Context) {
	start, end, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	query := availabilityapp.CheckAvailabilityQuery{CarID: c.Param("id"), Start: start, End: end}
	result, err := queries.Ask[availabilityapp.CheckAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Available(c *gin.Context) {
	start, end, ok := parseRangeQuery(c)
	if !ok {
		return
	}
	query := availabilityapp.AvailableCarsQuery{Start: start, End: end}
	result, err := queries.Ask[availabilityapp.AvailableCarsQuery, dto.AvailableCars](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parseRangeQuery(c *gin.Context) (time.Time, time.Time, bool) {
	start, err := time.Parse(time.RFC3339, c.Query("start"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be an RFC 3339 timestamp"})
		return time.Time{}, time.Time{}, false
	}
	end, err := time.Parse(time.RFC3339, c.Query("end"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be an RFC 3339 timestamp"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

var _ AvailabilityHTTP = AvailabilityHandler{}
