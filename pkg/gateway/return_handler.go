package gateway

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"paygate/pkg/errors"
)

// ReturnHandler builds a gin handler for the merchant's return URL, where
// the gateway redirects the customer after the payment page. The signed
// payload arrives as query parameters (GET) or form fields (POST); it is
// verified before onReturn sees it. An unverifiable redirect gets a 400 and
// never reaches the merchant callback.
func ReturnHandler(c *Client, logger *zap.Logger, onReturn func(ctx *gin.Context, resp *PaymentResponse)) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		values := ctx.Request.URL.Query()
		if ctx.Request.Method == http.MethodPost {
			if err := ctx.Request.ParseForm(); err != nil {
				logger.Warn("malformed return payload", zap.Error(err))
				ctx.JSON(http.StatusBadRequest, gin.H{"error": "malformed payload"})
				return
			}
			values = ctx.Request.PostForm
		}

		resp, err := c.ParseReturnResponse(values)
		if err != nil {
			logger.Warn("return verification failed", zap.Error(err))
			status := http.StatusBadRequest
			if errors.IsCrypto(err) {
				status = http.StatusInternalServerError
			}
			ctx.JSON(status, gin.H{"error": "signature verification failed"})
			return
		}

		logger.Info("payment return verified",
			zap.String("pay_id", resp.PayID),
			zap.Int("result_code", resp.ResultCode),
			zap.Int("payment_status", resp.PaymentStatus),
		)
		onReturn(ctx, resp)
	}
}
