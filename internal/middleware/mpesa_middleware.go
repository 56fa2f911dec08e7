package middleware

import (
	"github.com/Trescaul/afri-skill-showcase/internal/mpesa"
	"github.com/gin-gonic/gin"
)

func MpesaMiddleware(gateway mpesa.Gateway) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("mpesa_gateway", gateway)
		c.Next()
	}
}

func GetMpesaGateway(c *gin.Context) mpesa.Gateway {
	gateway, exists := c.Get("mpesa_gateway")
	if !exists {
		return nil
	}
	return gateway.(mpesa.Gateway)
}
