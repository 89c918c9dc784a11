package user

import (
	"net/http"

	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"

	"github.com/gin-gonic/gin"
)

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func UserRegister(c *gin.Context, d *internal.Deps) {
	var data credentialsBody
	if !respond.Bind(c, &data) {
		return
	}

	msg, err := d.Auth.Register(c.Request.Context(), data.Email, data.Password)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": msg,
		"status":  "pending_verification",
	})
}
