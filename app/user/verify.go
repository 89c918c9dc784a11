package user

import (
	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"

	"github.com/gin-gonic/gin"
)

type verifyBody struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailBody struct {
	Email string `json:"email"`
}

func UserVerify(c *gin.Context, d *internal.Deps) {
	var data verifyBody
	if !respond.Bind(c, &data) {
		return
	}

	msg, err := d.Auth.VerifyEmail(c.Request.Context(), data.Email, data.Code)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.Message(c, msg)
}

func UserResendVerify(c *gin.Context, d *internal.Deps) {
	var data emailBody
	if !respond.Bind(c, &data) {
		return
	}

	msg, err := d.Auth.ResendVerification(c.Request.Context(), data.Email)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.Message(c, msg)
}
