package user

import (
	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/pkg/middleware"

	"github.com/gin-gonic/gin"
)

type resetBody struct {
	Email       string `json:"email"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type changeConfirmBody struct {
	Code            string `json:"code"`
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func UserForgotPassword(c *gin.Context, d *internal.Deps) {
	var data emailBody
	if !respond.Bind(c, &data) {
		return
	}

	msg, err := d.Auth.ForgotPassword(c.Request.Context(), data.Email)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.Message(c, msg)
}

func UserResetPassword(c *gin.Context, d *internal.Deps) {
	var data resetBody
	if !respond.Bind(c, &data) {
		return
	}

	msg, err := d.Auth.ResetPassword(c.Request.Context(), data.Email, data.Code, data.NewPassword)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.Message(c, msg)
}

func UserChangePasswordRequest(c *gin.Context, d *internal.Deps) {
	u, _ := middleware.CurrentUser(c)

	msg, err := d.Auth.RequestPasswordChange(c.Request.Context(), u)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.Message(c, msg)
}

func UserChangePasswordConfirm(c *gin.Context, d *internal.Deps) {
	u, _ := middleware.CurrentUser(c)

	var data changeConfirmBody
	if !respond.Bind(c, &data) {
		return
	}

	msg, err := d.Auth.ConfirmPasswordChange(c.Request.Context(), u, data.Code, data.CurrentPassword, data.NewPassword)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.Message(c, msg)
}
