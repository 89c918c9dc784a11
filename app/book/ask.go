package book

import (
	"net/http"

	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/internal/apperr"
	"bitwise74/smart-librarian/internal/rag"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errNoRecommender = apperr.New(apperr.KindUnavailable, "Recommendations are not configured")

type askBody struct {
	Query string `json:"query"`
}

func BookAsk(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	if d.Recommender == nil {
		respond.Error(c, errNoRecommender)
		return
	}

	var data askBody
	if !respond.Bind(c, &data) {
		return
	}

	a, err := d.Recommender.Ask(c.Request.Context(), data.Query)
	if err != nil {
		respond.Error(c, err)
		return
	}

	// Signed in callers get the query added to their history
	if userID := c.GetString("userID"); userID != "" && a.Kind != rag.AnswerRedirect {
		if _, err := d.Profile.TrackSearch(c.Request.Context(), userID, data.Query); err != nil {
			zap.L().Error("Failed to track search", zap.Error(err), zap.String("requestID", requestID))
		}
	}

	switch a.Kind {
	case rag.AnswerRecommendation:
		c.JSON(http.StatusOK, gin.H{
			"recommended_title": a.Book.Title,
			"author":            a.Book.Author,
			"difficulty":        a.Book.Difficulty,
			"detailed_summary":  a.Book.FullSummary,
			"alternatives":      a.Alternatives,
		})
	case rag.AnswerMessage:
		c.JSON(http.StatusOK, gin.H{
			"message":      a.Message,
			"alternatives": a.Alternatives,
		})
	case rag.AnswerRedirect:
		c.JSON(http.StatusOK, gin.H{
			"message": a.Message,
		})
	}
}

func BookFetch(c *gin.Context, d *internal.Deps) {
	if d.Recommender == nil {
		respond.Error(c, errNoRecommender)
		return
	}

	b, err := d.Recommender.Lookup(c.Request.Context(), c.Param("title"))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}
