// Package api exposes the companion store over the loopback HTTP surface.
package api

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"talking-pet/companion/internal/models"
	"talking-pet/companion/internal/store"
	apperrors "talking-pet/companion/pkg/errors"
	"talking-pet/companion/pkg/logger"
)

// Companion is the store surface served over HTTP
type Companion interface {
	Snapshot() store.Snapshot
	Profile() *models.Profile
	LoadProfile(ctx context.Context) error
	LoadShop(ctx context.Context, refresh bool) ([]models.ShopItem, error)
	Buy(ctx context.Context, itemID string) error
	Equip(ctx context.Context, itemID string) error
	SubmitMinigame(ctx context.Context, result models.MinigameResult) error
	Action(ctx context.Context, action models.Action) error
	SendMessage(ctx context.Context, content string) error
	TranscribeAndSend(ctx context.Context, audio []byte, filename, contentType string) (string, error)
	Transcribe(ctx context.Context, audio []byte, filename, contentType string) (string, error)
	StartReminders()
	StopReminders()
	RemindersRunning() bool
	MaybeSendReminder(ctx context.Context) bool
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Content string `json:"content" binding:"required"`
}

// ChatReply is returned by POST /api/chat
type ChatReply struct {
	Result  *models.ChatResult `json:"result"`
	Profile *models.Profile    `json:"profile"`
}

// ReminderStatus is returned by the reminder endpoints
type ReminderStatus struct {
	Running bool `json:"running"`
	Fired   bool `json:"fired,omitempty"`
}

// CompanionHandler serves state, care actions, shop, chat and reminders
type CompanionHandler struct {
	companion     Companion
	maxUploadSize int64
}

// NewCompanionHandler creates a handler over the companion store
func NewCompanionHandler(companion Companion, maxUploadSize int64) *CompanionHandler {
	return &CompanionHandler{companion: companion, maxUploadSize: maxUploadSize}
}

// RegisterRoutes registers the companion routes under /api
func (h *CompanionHandler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/api")
	{
		group.GET("/state", h.GetState)
		group.POST("/profile/reload", h.ReloadProfile)
		group.GET("/shop", h.GetShop)
		group.POST("/shop/buy", h.BuyItem)
		group.POST("/shop/equip", h.EquipItem)
		group.POST("/minigame", h.SubmitMinigame)
		group.POST("/actions/:action", h.PerformAction)
		group.POST("/chat", h.SendChat)
		group.POST("/stt", h.Transcribe)
		group.POST("/reminders/start", h.StartReminders)
		group.POST("/reminders/stop", h.StopReminders)
		group.POST("/reminders/check", h.CheckReminder)
	}
}

// GetState returns the current snapshot
func (h *CompanionHandler) GetState(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.companion.Snapshot())
}

// ReloadProfile refetches the profile from the backend
func (h *CompanionHandler) ReloadProfile(ctx *gin.Context) {
	if err := h.companion.LoadProfile(ctx.Request.Context()); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.companion.Profile())
}

// GetShop returns the catalog; ?refresh=true bypasses the cache
func (h *CompanionHandler) GetShop(ctx *gin.Context) {
	refresh, _ := strconv.ParseBool(ctx.Query("refresh"))
	items, err := h.companion.LoadShop(ctx.Request.Context(), refresh)
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.ShopResponse{Items: items})
}

// BuyItem purchases an item
func (h *CompanionHandler) BuyItem(ctx *gin.Context) {
	h.itemCall(ctx, h.companion.Buy)
}

// EquipItem equips an owned item
func (h *CompanionHandler) EquipItem(ctx *gin.Context) {
	h.itemCall(ctx, h.companion.Equip)
}

func (h *CompanionHandler) itemCall(ctx *gin.Context, call func(context.Context, string) error) {
	var req models.ItemRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "item_id is required")
		return
	}
	if err := call(ctx.Request.Context(), req.ItemID); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.companion.Profile())
}

// SubmitMinigame reports a finished minigame
func (h *CompanionHandler) SubmitMinigame(ctx *gin.Context) {
	var req models.MinigameResult
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "invalid minigame result")
		return
	}
	if err := h.companion.SubmitMinigame(ctx.Request.Context(), req); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.companion.Profile())
}

// PerformAction runs a care action
func (h *CompanionHandler) PerformAction(ctx *gin.Context) {
	action, ok := models.ParseAction(ctx.Param("action"))
	if !ok {
		_ = ctx.Error(apperrors.NewBadRequestError(apperrors.CodeUnknownAction, "unknown action: "+ctx.Param("action")))
		return
	}
	if err := h.companion.Action(ctx.Request.Context(), action); err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, h.companion.Profile())
}

// SendChat sends a chat message and returns the structured reply
func (h *CompanionHandler) SendChat(ctx *gin.Context) {
	var req ChatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		badRequest(ctx, "content is required")
		return
	}
	if err := h.companion.SendMessage(ctx.Request.Context(), req.Content); err != nil {
		fail(ctx, err)
		return
	}
	snap := h.companion.Snapshot()
	ctx.JSON(http.StatusOK, ChatReply{Result: snap.ChatResult, Profile: snap.Profile})
}

// Transcribe converts an uploaded recording to text. With ?send=true the
// transcript is also sent as a chat message.
func (h *CompanionHandler) Transcribe(ctx *gin.Context) {
	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxUploadSize)

	file, err := ctx.FormFile("audio")
	if err != nil {
		badRequest(ctx, "audio file is required")
		return
	}
	f, err := file.Open()
	if err != nil {
		badRequest(ctx, "unreadable audio file")
		return
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		badRequest(ctx, "unreadable audio file")
		return
	}

	transcribe := h.companion.Transcribe
	if send, _ := strconv.ParseBool(ctx.Query("send")); send {
		transcribe = h.companion.TranscribeAndSend
	}

	text, err := transcribe(ctx.Request.Context(), audio, file.Filename, file.Header.Get("Content-Type"))
	if err != nil {
		fail(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, models.TranscriptResponse{Text: text})
}

// StartReminders starts the proactive reminder loop
func (h *CompanionHandler) StartReminders(ctx *gin.Context) {
	h.companion.StartReminders()
	ctx.JSON(http.StatusOK, ReminderStatus{Running: h.companion.RemindersRunning()})
}

// StopReminders stops the proactive reminder loop
func (h *CompanionHandler) StopReminders(ctx *gin.Context) {
	h.companion.StopReminders()
	ctx.JSON(http.StatusOK, ReminderStatus{Running: h.companion.RemindersRunning()})
}

// CheckReminder runs one attention check immediately
func (h *CompanionHandler) CheckReminder(ctx *gin.Context) {
	fired := h.companion.MaybeSendReminder(ctx.Request.Context())
	ctx.JSON(http.StatusOK, ReminderStatus{Running: h.companion.RemindersRunning(), Fired: fired})
}

func badRequest(ctx *gin.Context, message string) {
	_ = ctx.Error(apperrors.NewBadRequestError(apperrors.CodeBadRequest, message))
}

// fail reports a store failure. Validation errors keep their status; anything
// that reached the backend is a bad gateway carrying the scoped message.
func fail(ctx *gin.Context, err error) {
	appErr := apperrors.FromError(err)
	if appErr.Code == apperrors.CodeBadRequest || appErr.Code == apperrors.CodeUnknownAction {
		_ = ctx.Error(appErr)
		return
	}
	logger.FromContext(ctx).LogWarn(err, "companion operation failed", "path", ctx.FullPath())
	_ = ctx.Error(apperrors.NewError(http.StatusBadGateway, appErr.Code, apperrors.Message(err)))
}
