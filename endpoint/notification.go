package endpoint

import (
	"fmt"

	"github.com/ariebrainware/medelle-reminder/middleware"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-gonic/gin"
)

// TestSendHandler godoc
// @Summary      Send a test email
// @Description  Sends one message to the operator address. data.link is set when the relay offers a preview UI.
// @Tags         Notification
// @Produce      json
// @Success      200 {object} util.APIResponse{data=reminder.TestResult} "Test message accepted"
// @Failure      429 {object} util.APIResponse "Too many requests"
// @Failure      500 {object} util.APIResponse "Send failed"
// @Router       /api/testar-envio [post]
func TestSendHandler(c *gin.Context) {
	d := middleware.GetDispatcher(c)
	if d == nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Envio de e-mail indisponível",
			Err: fmt.Errorf("dispatcher is nil"),
		})
		return
	}

	res, err := d.SendTest(c.Request.Context())
	if err != nil {
		util.CallServerError(c, util.APIErrorParams{
			Msg: "Erro no envio",
			Err: err,
		})
		return
	}

	util.CallSuccessOK(c, util.APISuccessParams{
		Msg:  "SUCESSO! O envio funcionou.",
		Data: res,
	})
}
