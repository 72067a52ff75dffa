package middleware

import (
	"time"

	"github.com/ariebrainware/medelle-reminder/reminder"
	"github.com/ariebrainware/medelle-reminder/store"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	storeKey      = "store"
	dispatcherKey = "dispatcher"
	requestIDKey  = "request_id"

	// RequestIDHeader carries the request id in both directions.
	RequestIDHeader = "X-Request-ID"
)

// CORSMiddleware allows the browser client to call the API from any origin.
func CORSMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "X-Requested-With", RequestIDHeader},
		ExposeHeaders:   []string{RequestIDHeader},
		MaxAge:          24 * time.Hour,
	})
}

// StoreMiddleware injects the record store into the request context.
func StoreMiddleware(s store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(storeKey, s)
		c.Next()
	}
}

// GetStore returns the store set by StoreMiddleware, or nil.
func GetStore(c *gin.Context) store.Store {
	v, ok := c.Get(storeKey)
	if !ok {
		return nil
	}
	s, _ := v.(store.Store)
	return s
}

// DispatcherMiddleware injects the reminder dispatcher into the request context.
func DispatcherMiddleware(d *reminder.Dispatcher) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(dispatcherKey, d)
		c.Next()
	}
}

// GetDispatcher returns the dispatcher set by DispatcherMiddleware, or nil.
func GetDispatcher(c *gin.Context) *reminder.Dispatcher {
	v, ok := c.Get(dispatcherKey)
	if !ok {
		return nil
	}
	d, _ := v.(*reminder.Dispatcher)
	return d
}

// RequestID reuses the caller's X-Request-ID or generates one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Next()
	}
}

// GetRequestID returns the id assigned by RequestID.
func GetRequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
