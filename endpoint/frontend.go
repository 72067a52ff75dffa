package endpoint

import (
	_ "embed"
	"errors"
	"net/http"

	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-gonic/gin"
)

//go:embed web/index.html
var indexHTML []byte

// Index serves the browser client.
func Index(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
}

// Healthz godoc
// @Summary      Liveness probe
// @Tags         System
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// NotFound answers unknown routes with the API envelope.
func NotFound(c *gin.Context) {
	util.CallErrorNotFound(c, util.APIErrorParams{
		Msg: "Rota não encontrada.",
		Err: errors.New("route not found"),
	})
}
