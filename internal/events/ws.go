package events

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // served behind the staff check, not to browsers at large
	},
}

// WSHandler streams job events until the client goes away.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// welcome goes out before Add so it never races a broadcast
		_ = ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome","stream":"jobs"}`))
		hub.Add(ws)
		hub.log.Debug("ws client connected", "remote", c.Request.RemoteAddr)

		// incoming messages are ignored; reading detects the close
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.Remove(ws)
		hub.log.Debug("ws client disconnected", "remote", c.Request.RemoteAddr)
	}
}
