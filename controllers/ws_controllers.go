package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/washline/carwash-app/realtime"
	"github.com/washline/carwash-app/utils"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var wsRoles = map[string]bool{
	"customer": true,
	"cleaner":  true,
	"company":  true,
	"admin":    true,
}

// HandleWebSocket upgrades the connection and registers it with the hub. The
// path role selects which broadcasts the client receives; it must match the
// authenticated role (admin may listen on any channel).
func HandleWebSocket(c *gin.Context) {
	channel := c.Param("role")
	if !wsRoles[channel] {
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown channel"))
		return
	}

	userID, err := currentUserID(c)
	if err != nil {
		utils.RespondError(c, http.StatusUnauthorized, err)
		return
	}
	roleInterface, _ := c.Get("role")
	role, _ := roleInterface.(string)
	if role != channel && role != "admin" {
		utils.RespondError(c, http.StatusForbidden, ErrNoPermission)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Error upgrading websocket for user %d: %v", userID, err)
		return
	}

	realtime.RegisterClient(conn, channel, userID)
	utils.InfoLogger.Printf("Websocket connected: user %d on %s channel", userID, channel)

	go func() {
		defer realtime.UnregisterClient(conn)
		for {
			// Clients only listen; the read loop exists to detect disconnects.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
