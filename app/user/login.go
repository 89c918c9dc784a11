package user

import (
	"net/http"

	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/pkg/middleware"
	"bitwise74/smart-librarian/pkg/security"

	"github.com/gin-gonic/gin"
)

const refreshCookie = "refresh_token"

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func UserLogin(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data credentialsBody
	if !respond.Bind(c, &data) {
		return
	}

	if data.Email == "" || data.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Email and password are required",
			"requestID": requestID,
		})
		return
	}

	pair, err := d.Auth.Login(c.Request.Context(), data.Email, data.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	setSession(c, d, pair)
}

// UserRefresh accepts the refresh token from the body or its cookie
func UserRefresh(c *gin.Context, d *internal.Deps) {
	var data refreshBody
	_ = c.ShouldBindJSON(&data)

	token := data.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshCookie)
	}

	pair, err := d.Auth.Refresh(c.Request.Context(), token)
	if err != nil {
		respond.Error(c, err)
		return
	}

	setSession(c, d, pair)
}

func UserLogout(c *gin.Context, d *internal.Deps) {
	secure := d.Cfg.Host.SSL.Enabled

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, "", -1, "/", "", secure, true)
	c.SetCookie(refreshCookie, "", -1, "/", "", secure, true)

	respond.Message(c, "Logged out.")
}

func setSession(c *gin.Context, d *internal.Deps, pair *security.TokenPair) {
	secure := d.Cfg.Host.SSL.Enabled

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.AccessCookie, pair.Access, int(d.Tokens.AccessTTL().Seconds()), "/", "", secure, true)
	c.SetCookie(refreshCookie, pair.Refresh, int(d.Tokens.RefreshTTL().Seconds()), "/", "", secure, true)

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.Access,
		"refresh_token": pair.Refresh,
		"token_type":    "bearer",
		"expires_in":    int(d.Tokens.AccessTTL().Seconds()),
	})
}
