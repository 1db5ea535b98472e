package gateway

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"talking-pet/companion/internal/models"
	apperrors "talking-pet/companion/pkg/errors"
	"talking-pet/companion/pkg/logger"
	"talking-pet/companion/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBackend(t *testing.T, register func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second, logger.Discard(), WithAPIKey("secret"))
}

func TestGetProfile(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/api/profile", func(ctx *gin.Context) {
			assert.Equal(t, "Bearer secret", ctx.GetHeader("Authorization"))
			assert.NotEmpty(t, ctx.GetHeader("X-Request-ID"))
			ctx.JSON(http.StatusOK, models.Profile{ID: 1, Name: "Tom", Hunger: 42, EquippedItems: map[string]string{"hat": "hat_cap"}})
		})
	})

	p, err := c.GetProfile(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "Tom", p.Name)
	assert.Equal(t, 42.0, p.Hunger)
	assert.Equal(t, "hat_cap", p.EquippedItems["hat"])
}

func TestPerformActionReturnsProfile(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/actions/:action", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"profile": models.Profile{Name: ctx.Param("action")},
				"message": "Action applied.",
			})
		})
	})

	p, err := c.PerformAction(t.Context(), models.ActionFeed)
	require.NoError(t, err)
	assert.Equal(t, "feed", p.Name)
}

func TestErrorBodyBecomesMessage(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/shop/buy", func(ctx *gin.Context) {
			var req models.ItemRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			assert.Equal(t, "hat_top", req.ItemID)
			ctx.String(http.StatusBadRequest, "Not enough coins")
		})
		r.POST("/api/shop/equip", func(ctx *gin.Context) {
			ctx.Status(http.StatusInternalServerError)
		})
	})

	_, err := c.BuyItem(t.Context(), "hat_top")
	require.Error(t, err)
	assert.Equal(t, "Not enough coins", apperrors.Message(err))
	assert.Equal(t, http.StatusBadRequest, apperrors.StatusCode(err))

	_, err = c.EquipItem(t.Context(), "hat_top")
	require.Error(t, err)
	assert.Equal(t, "Request failed", apperrors.Message(err))
}

func TestSendChat(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/chat", func(ctx *gin.Context) {
			var req models.ChatRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			require.Len(t, req.Messages, 1)
			assert.Equal(t, models.RoleUser, req.Messages[0].Role)
			ctx.JSON(http.StatusOK, gin.H{
				"response": gin.H{"reply": "hello!", "mood": "happy", "action": "none", "sfx_prompt": "purr"},
				"profile":  gin.H{"name": "Tom", "mood": 80},
			})
		})
	})

	resp, err := c.SendChat(t.Context(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "hello!", resp.Response.Reply)
	assert.Equal(t, models.MoodHappy, resp.Response.Mood)
	assert.Equal(t, "purr", resp.Response.EffectPrompt())
	assert.Equal(t, "", resp.Response.AnimationHint())
	assert.Equal(t, 80.0, resp.Profile.Mood)
}

func TestRequestReminderSendsEmptyObject(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/reminder", func(ctx *gin.Context) {
			body, _ := io.ReadAll(ctx.Request.Body)
			assert.JSONEq(t, `{}`, string(body))
			ctx.JSON(http.StatusOK, gin.H{"response": gin.H{"reply": "feed me", "mood": "sad", "action": "feed", "animation": "sad.webm"}})
		})
	})

	resp, err := c.RequestReminder(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "sad.webm", resp.Response.AnimationHint())
}

func TestActionFeedbackBody(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/action-feedback", func(ctx *gin.Context) {
			var req models.ActionFeedbackRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			assert.Equal(t, models.ActionClean, req.Action)
			ctx.JSON(http.StatusOK, gin.H{"response": gin.H{"reply": "so fresh", "mood": "happy", "action": "clean"}})
		})
	})

	resp, err := c.RequestActionFeedback(t.Context(), models.ActionClean)
	require.NoError(t, err)
	assert.Equal(t, "so fresh", resp.Response.Reply)
}

func TestSynthesisReturnsBytes(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/tts", func(ctx *gin.Context) {
			var req models.SpeechRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			ctx.Data(http.StatusOK, "audio/mpeg", []byte("tts:"+req.Text))
		})
		r.POST("/api/sfx", func(ctx *gin.Context) {
			var req models.SoundEffectRequest
			require.NoError(t, ctx.ShouldBindJSON(&req))
			ctx.Data(http.StatusOK, "audio/mpeg", []byte("sfx:"+req.Prompt))
		})
	})

	speech, err := c.SynthesizeSpeech(t.Context(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "tts:hi", string(speech))

	effect, err := c.SynthesizeSoundEffect(t.Context(), "meow")
	require.NoError(t, err)
	assert.Equal(t, "sfx:meow", string(effect))
}

func TestTranscribeSpeechUploadsMultipart(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/stt", func(ctx *gin.Context) {
			fh, err := ctx.FormFile("audio")
			require.NoError(t, err)
			assert.Equal(t, "speech.webm", fh.Filename)
			f, _ := fh.Open()
			data, _ := io.ReadAll(f)
			ctx.JSON(http.StatusOK, models.TranscriptResponse{Text: string(data)})
		})
	})

	text, err := c.TranscribeSpeech(t.Context(), []byte("hello pet"), "", "")
	require.NoError(t, err)
	assert.Equal(t, "hello pet", text)
}

func TestGetShopKeepsOrder(t *testing.T) {
	items := []models.ShopItem{{ID: "hat_cap", Price: 50}, {ID: "hat_top", Price: 80}, {ID: "bg_sunset", Price: 120}}
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/api/shop", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, models.ShopResponse{Items: items})
		})
	})

	got, err := c.GetShop(t.Context())
	require.NoError(t, err)
	assert.Equal(t, items, got)
}

func TestTransportFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", time.Second, logger.Discard())

	_, err := c.GetProfile(t.Context())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperrors.StatusCode(err))
}

func TestMinigameBody(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.POST("/api/minigame/result", func(ctx *gin.Context) {
			var req map[string]any
			require.NoError(t, json.NewDecoder(ctx.Request.Body).Decode(&req))
			assert.Equal(t, 12.0, req["score"])
			assert.Equal(t, 3000.0, req["duration_ms"])
			ctx.JSON(http.StatusOK, gin.H{"profile": gin.H{"coins": 112}})
		})
	})

	p, err := c.SubmitMinigame(t.Context(), models.MinigameResult{Score: 12, DurationMS: 3000})
	require.NoError(t, err)
	assert.Equal(t, 112, p.Coins)
}

func TestRequestIDIsPropagated(t *testing.T) {
	c := newBackend(t, func(r *gin.Engine) {
		r.GET("/api/shop", func(ctx *gin.Context) {
			assert.Equal(t, "req-42", ctx.GetHeader("X-Request-ID"))
			ctx.JSON(http.StatusOK, models.ShopResponse{})
		})
	})

	_, err := c.GetShop(middleware.WithRequestID(t.Context(), "req-42"))
	require.NoError(t, err)
}
