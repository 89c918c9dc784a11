package shelf

import (
	"net/http"
	"strconv"

	"bitwise74/smart-librarian/app/respond"
	"bitwise74/smart-librarian/internal"
	"bitwise74/smart-librarian/internal/model"

	"github.com/gin-gonic/gin"
)

type addBody struct {
	Title  string            `json:"title"`
	Author string            `json:"author"`
	Status model.ShelfStatus `json:"status"`
}

type editBody struct {
	Status model.ShelfStatus `json:"status"`
}

func ShelfFetch(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	items, err := d.Profile.Shelf(c.Request.Context(), userID, model.ShelfStatus(c.Query("status")))
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, items)
}

func ShelfAdd(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	var data addBody
	if !respond.Bind(c, &data) {
		return
	}

	item, err := d.Profile.AddToShelf(c.Request.Context(), userID, data.Title, data.Author, data.Status)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func ShelfEdit(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	id, ok := itemID(c)
	if !ok {
		return
	}

	var data editBody
	if !respond.Bind(c, &data) {
		return
	}

	if err := d.Profile.UpdateShelf(c.Request.Context(), userID, id, data.Status); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func ShelfDelete(c *gin.Context, d *internal.Deps) {
	userID := c.MustGet("userID").(string)

	id, ok := itemID(c)
	if !ok {
		return
	}

	if err := d.Profile.RemoveFromShelf(c.Request.Context(), userID, id); err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not found",
			"requestID": c.MustGet("requestID").(string),
		})
		return 0, false
	}

	return uint(id), true
}
