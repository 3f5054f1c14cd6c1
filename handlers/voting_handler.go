package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"oneworld-backend/middleware"
	"oneworld-backend/models"
	"oneworld-backend/service"
	"oneworld-backend/ws"

	"github.com/gin-gonic/gin"
)

// VotingHandler maps the voting REST surface onto the voting engine.
type VotingHandler struct {
	votings *service.VotingService
	hub     *ws.Hub
}

// NewVotingHandler wires the voting engine and the optional live-result hub.
func NewVotingHandler(votings *service.VotingService, hub *ws.Hub) *VotingHandler {
	return &VotingHandler{votings: votings, hub: hub}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voting ID"})
		return 0, false
	}
	return uint(id), true
}

// GetActiveVoting returns the currently active voting with computed
// percentages, or an explicit empty payload when none is active.
func (h *VotingHandler) GetActiveVoting(c *gin.Context) {
	results, err := h.votings.ActiveVoting(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch active voting"})
		return
	}
	if results == nil {
		c.JSON(http.StatusOK, gin.H{
			"voting":  nil,
			"message": "No active voting at the moment",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voting": results})
}

// GetResults returns a voting with percentages and winner.
func (h *VotingHandler) GetResults(c *gin.Context) {
	votingID, ok := parseID(c)
	if !ok {
		return
	}

	results, err := h.votings.Results(c.Request.Context(), votingID)
	if err != nil {
		if errors.Is(err, service.ErrVotingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Voting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch results"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"voting": results})
}

// CastVoteInput is the vote request body.
type CastVoteInput struct {
	OptionID uint `json:"option_id" binding:"required"`
}

// CastVote records the authenticated user's ballot.
func (h *VotingHandler) CastVote(c *gin.Context) {
	votingID, ok := parseID(c)
	if !ok {
		return
	}

	var input CastVoteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "option_id is required"})
		return
	}

	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	receipt, err := h.votings.CastVote(c.Request.Context(), votingID, input.OptionID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVotingNotOpen):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Voting is not active or does not exist"})
		case errors.Is(err, service.ErrAlreadyVoted):
			c.JSON(http.StatusBadRequest, gin.H{"error": "You have already voted in this voting"})
		case errors.Is(err, service.ErrInvalidOption):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid voting option"})
		default:
			log.Printf("Failed to record vote: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record vote"})
		}
		return
	}

	h.broadcastResults(c, votingID)

	c.JSON(http.StatusOK, gin.H{
		"message":  "Vote recorded successfully",
		"voted_at": receipt.VotedAt,
	})
}

// CreateVotingInput is the admin create request body. Dates are RFC 3339.
type CreateVotingInput struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	ProjectIDs  []uint    `json:"project_ids"`
}

// CreateVoting creates a voting with its option set.
func (h *VotingHandler) CreateVoting(c *gin.Context) {
	var input CreateVotingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, _ := middleware.CurrentUser(c)
	var createdBy uint
	if user != nil {
		createdBy = user.ID
	}

	voting, err := h.votings.CreateVoting(c.Request.Context(), service.CreateVotingInput{
		Title:       input.Title,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		ProjectIDs:  input.ProjectIDs,
		CreatedBy:   createdBy,
	})
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("Failed to create voting: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create voting"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Voting created successfully",
		"voting":  voting,
	})
}

// UpdateVotingInput is the admin update request body; absent fields are left
// untouched.
type UpdateVotingInput struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	StartDate   *time.Time           `json:"start_date"`
	EndDate     *time.Time           `json:"end_date"`
	Status      *models.VotingStatus `json:"status"`
}

// UpdateVoting applies a partial update to a voting.
func (h *VotingHandler) UpdateVoting(c *gin.Context) {
	votingID, ok := parseID(c)
	if !ok {
		return
	}

	var input UpdateVotingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	voting, err := h.votings.UpdateVoting(c.Request.Context(), votingID, service.UpdateVotingInput{
		Title:       input.Title,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Status:      input.Status,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrVotingNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Voting not found"})
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update voting"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Voting updated successfully",
		"voting":  voting,
	})
}

// CloseVoting moves a voting to closed.
func (h *VotingHandler) CloseVoting(c *gin.Context) {
	votingID, ok := parseID(c)
	if !ok {
		return
	}

	voting, err := h.votings.CloseVoting(c.Request.Context(), votingID)
	if err != nil {
		if errors.Is(err, service.ErrVotingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Voting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close voting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Voting closed successfully",
		"voting":  voting,
	})
}

// DeleteVoting removes a voting with its options and ballots.
func (h *VotingHandler) DeleteVoting(c *gin.Context) {
	votingID, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.votings.DeleteVoting(c.Request.Context(), votingID); err != nil {
		if errors.Is(err, service.ErrVotingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Voting not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete voting"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Voting deleted successfully"})
}

// ListVotings returns every voting with participation counters.
func (h *VotingHandler) ListVotings(c *gin.Context) {
	votings, err := h.votings.ListVotings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch votings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"votings": votings})
}

// GetHistory returns the most recently closed votings with winners.
func (h *VotingHandler) GetHistory(c *gin.Context) {
	history, err := h.votings.History(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// GetUserVotes returns the caller's own ballots.
func (h *VotingHandler) GetUserVotes(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	votes, err := h.votings.UserVotes(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user votes"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"votes": votes})
}

// broadcastResults pushes fresh aggregates to live subscribers of a voting.
func (h *VotingHandler) broadcastResults(c *gin.Context, votingID uint) {
	if h.hub == nil {
		return
	}
	results, err := h.votings.Results(c.Request.Context(), votingID)
	if err != nil {
		log.Printf("Failed to aggregate results for live update: %v", err)
		return
	}
	h.hub.Broadcast(votingID, &ws.Message{
		Type:     "results",
		VotingID: votingID,
		Payload:  results,
	})
}
