package sync

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins
	},
}

func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		// Welcome goes out before AddWS so it never races a Publish.
		if err := ws.WriteMessage(websocket.TextMessage, hub.welcome("websocket")); err != nil {
			_ = ws.Close()
			return
		}
		hub.AddWS(ws)
		hub.logger.Info("ws client connected")

		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		hub.RemoveWS(ws)
		hub.logger.Info("ws client disconnected")
	}
}
