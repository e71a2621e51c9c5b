// Package http contains the Gin handlers of the REST facade. Every route
// assumes the Auth middleware has resolved the caller's identity.
package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"eldercare-comm/internal/middleware"
	"eldercare-comm/internal/service"
)

// CommunicationHandler serves the /communications routes.
type CommunicationHandler struct {
	comms *service.CommunicationService
}

// NewCommunicationHandler creates the handler.
func NewCommunicationHandler(comms *service.CommunicationService) *CommunicationHandler {
	if comms == nil {
		panic("CommunicationService cannot be nil for CommunicationHandler")
	}
	return &CommunicationHandler{comms: comms}
}

// SendMessageRequest is the POST /communications/messages body.
type SendMessageRequest struct {
	ReceiverID uint   `json:"receiverId" binding:"required"`
	Content    string `json:"content" binding:"required"`
	Type       string `json:"type"`
}

// SendMessage creates a message with status sent.
func (h *CommunicationHandler) SendMessage(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logrus.WithError(err).Warn("SendMessage: invalid input format")
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: receiverId and content are required")
		return
	}

	msg, err := h.comms.SendMessage(c.Request.Context(), callerID, req.ReceiverID, req.Content, req.Type)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, msg)
}

// MessageHistory returns the conversation with a contact, newest first.
func (h *CommunicationHandler) MessageHistory(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	contactID, ok := pathID(c, "contactId")
	if !ok {
		return
	}

	msgs, err := h.comms.MessageHistory(c.Request.Context(), callerID, contactID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, msgs)
}

// UpdateMessageStatusRequest is the PUT .../messages/:id/status body.
type UpdateMessageStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateMessageStatus advances a message along the forward-only pipeline.
func (h *CommunicationHandler) UpdateMessageStatus(c *gin.Context) {
	if _, ok := middleware.CallerID(c); !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req UpdateMessageStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: status is required")
		return
	}

	msg, err := h.comms.AdvanceMessageStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, msg)
}

// StartCallRequest is the POST /communications/calls body.
type StartCallRequest struct {
	ReceiverID uint   `json:"receiverId" binding:"required"`
	Type       string `json:"type" binding:"required"`
	Status     string `json:"status" binding:"required"`
}

// StartCall creates a call record with startTime set to now.
func (h *CommunicationHandler) StartCall(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: receiverId, type and status are required")
		return
	}

	call, err := h.comms.StartCall(c.Request.Context(), callerID, req.ReceiverID, req.Type, req.Status)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, call)
}

// FinishCallRequest is the PUT /communications/calls/:id body.
type FinishCallRequest struct {
	EndTime time.Time `json:"endTime" binding:"required"`
	Status  string    `json:"status" binding:"required"`
}

// FinishCall terminates a call record and derives its duration.
func (h *CommunicationHandler) FinishCall(c *gin.Context) {
	if _, ok := middleware.CallerID(c); !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req FinishCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: endTime and status are required")
		return
	}

	call, err := h.comms.FinishCall(c.Request.Context(), id, req.EndTime, req.Status)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, call)
}

// CallHistory returns every call involving the caller, newest first.
func (h *CommunicationHandler) CallHistory(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	calls, err := h.comms.CallHistory(c.Request.Context(), callerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, calls)
}

// Contacts returns the caller's contact list via the identity provider.
func (h *CommunicationHandler) Contacts(c *gin.Context) {
	callerID, ok := middleware.CallerID(c)
	if !ok {
		ErrorResponse(c, http.StatusUnauthorized, "User not authenticated")
		return
	}

	contacts, err := h.comms.Contacts(c.Request.Context(), callerID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, contacts)
}

// pathID parses a numeric path parameter, responding 400 on failure.
func pathID(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		ErrorResponse(c, http.StatusBadRequest, "Invalid "+name+" format")
		return 0, false
	}
	return uint(id), true
}
