// Package admin serves the HTTP side of resp3d: health checks, a debugging
// endpoint that renders raw RESP3 and a dump of the store.
package admin

import (
	"errors"
	"io"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/luma/resp3d/internal/meta"
	"github.com/luma/resp3d/protocol"
	"github.com/luma/resp3d/storage"
)

const defaultMaxBodySize = 1 << 20

type Options struct {
	// Debug puts gin in debug mode
	Debug bool

	// MaxBodySize bounds the request bodies /decode accepts. Defaults to
	// 1MiB.
	MaxBodySize int64

	Store storage.Store
	Log   *zap.Logger
}

type decodeResponse struct {
	Messages []string `json:"messages"`
	Error    string   `json:"error,omitempty"`
	// Offset of the first byte that could not be decoded, set for protocol
	// errors only
	Offset *int64 `json:"offset,omitempty"`
}

type encodeRequest struct {
	Args []string `json:"args" binding:"required"`
}

func NewRouter(options Options) *gin.Engine {
	log := options.Log
	if log == nil {
		log = zap.NewNop()
	}

	maxBodySize := options.MaxBodySize
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	gin.DisableConsoleColor()
	if !options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Logs all requests, like a combined access and error log, with
	// RFC3339 UTC timestamps.
	r.Use(ginzap.GinzapWithConfig(log, &ginzap.Config{
		TimeFormat: time.RFC3339,
		UTC:        true,
		SkipPaths:  []string{"/health"},
	}))

	// Logs all panics to the error log, with stacks
	r.Use(ginzap.RecoveryWithZap(log, true))

	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": meta.VersionOrDev(),
		})
	})

	r.POST("/decode", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize+1))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if int64(len(body)) > maxBodySize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large"})
			return
		}

		c.JSON(decode(body))
	})

	r.POST("/encode", func(c *gin.Context) {
		var req encodeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		wire := protocol.Encode(protocol.NewBulkStringArray(req.Args...))
		c.Data(http.StatusOK, "application/octet-stream", wire)
	})

	if options.Store != nil {
		r.GET("/backup", func(c *gin.Context) {
			backup, err := options.Store.Backup()
			if err != nil {
				log.Error("Failed to back up the store", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}

			c.Data(http.StatusOK, "application/json", backup)
		})
	}

	return r
}

// decode renders every message in body. Decoding stops at the first protocol
// error; the messages before it are still returned.
func decode(body []byte) (int, decodeResponse) {
	resp := decodeResponse{Messages: []string{}}

	d := protocol.NewDecoder()
	msgs, err := d.Feed(body)
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, m.String())
	}

	var perr *protocol.ProtocolError
	switch {
	case errors.As(err, &perr):
		resp.Error = perr.Error()
		offset := perr.Offset
		resp.Offset = &offset
		return http.StatusUnprocessableEntity, resp

	case err != nil:
		resp.Error = err.Error()
		return http.StatusUnprocessableEntity, resp

	case len(d.Buffered()) > 0 || d.Pending():
		resp.Error = protocol.ErrIncomplete.Error()
		return http.StatusUnprocessableEntity, resp
	}

	return http.StatusOK, resp
}
