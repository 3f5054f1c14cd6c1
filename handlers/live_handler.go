package handlers

import (
	"errors"
	"log"
	"net/http"

	"oneworld-backend/service"
	"oneworld-backend/ws"

	"github.com/gin-gonic/gin"
)

// LiveHandler upgrades clients to the live-result stream of one voting.
type LiveHandler struct {
	votings *service.VotingService
	hub     *ws.Hub
}

// NewLiveHandler wires the voting engine and the hub.
func NewLiveHandler(votings *service.VotingService, hub *ws.Hub) *LiveHandler {
	return &LiveHandler{votings: votings, hub: hub}
}

// Subscribe checks the voting exists, then hands the connection to the hub.
func (h *LiveHandler) Subscribe(c *gin.Context) {
	votingID, ok := parseID(c)
	if !ok {
		return
	}

	if _, err := h.votings.Results(c.Request.Context(), votingID); err != nil {
		if errors.Is(err, service.ErrVotingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Voting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open live stream"})
		return
	}

	if err := h.hub.Serve(c.Writer, c.Request, votingID); err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
	}
}
