package user

import (
	"net/http"

	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// UserFetch returns the signed in user's profile and counters
func UserFetch(c *gin.Context, d *internal.Deps) {
	u, _ := middleware.CurrentUser(c)

	p, err := d.Profile.Summary(c.Request.Context(), u)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

func UserBadges(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	badges, err := d.Profile.Badges(c.Request.Context(), userID)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, badges)
}

type trackBody struct {
	Query string `json:"query"`
}

func UserTrackSearch(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data trackBody
	if !respond.Bind(c, &data) {
		return
	}

	tracked, err := d.Profile.TrackSearch(c.Request.Context(), userID, data.Query)
	if err != nil {
		respond.Error(c, err)
		return
	}

	if !tracked {
		c.JSON(http.StatusOK, gin.H{"skipped": true})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
