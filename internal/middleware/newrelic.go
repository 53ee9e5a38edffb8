package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// TransactionAttributes tags the New Relic transaction started by nrgin with
// the caller and idempotency key, and reports handler errors. It is a no-op
// when no transaction is attached.
func TransactionAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		txn := nrgin.Transaction(c)
		if txn == nil {
			return
		}
		if userID := c.GetHeader(UserIDHeader); userID != "" {
			txn.AddAttribute("user_id", userID)
		}
		if key := c.GetHeader(idempotencyHeader); key != "" {
			txn.AddAttribute("idempotency_key", key)
		}
		if c.Writer.Header().Get(ReplayedHeader) != "" {
			txn.AddAttribute("idempotent_replay", true)
		}
		for _, err := range c.Errors {
			txn.NoticeError(err.Err)
		}
	}
}
