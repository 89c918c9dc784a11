package tts

import (
	"net/http"

	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/internal/apperr"

	"github.com/gin-gonic/gin"
)

type speakBody struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

func TTSSpeak(c *gin.Context, d *internal.Deps) {
	if d.TTS == nil {
		respond.Error(c, apperr.New(apperr.KindUnavailable, "TTS is not configured"))
		return
	}

	var data speakBody
	if !respond.Bind(c, &data) {
		return
	}

	if data.Lang == "" {
		data.Lang = "en"
	}

	audio, err := d.TTS.Speak(c.Request.Context(), data.Text, data.Lang)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "audio/mpeg", audio)
}
