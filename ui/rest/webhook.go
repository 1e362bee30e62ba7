package rest

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/AzielCF/az-wap-ingest/domains/webhook"
	pkgError "github.com/AzielCF/az-wap-ingest/pkg/error"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/AzielCF/az-wap-ingest/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const headerHubSignature = "X-Hub-Signature-256"

type WebhookOptions struct {
	// CloudAPIVerifyToken answers Meta's subscription handshake.
	CloudAPIVerifyToken string
	// CloudAPIAppSecret, when set, makes X-Hub-Signature-256 mandatory on Cloud API posts.
	CloudAPIAppSecret string
}

type Webhook struct {
	Service webhook.IIngestUsecase
	Options WebhookOptions
}

func InitRestWebhook(app fiber.Router, service webhook.IIngestUsecase, opts WebhookOptions) Webhook {
	handler := Webhook{Service: service, Options: opts}

	group := app.Group("/webhooks")
	group.Get("/cloudapi", handler.VerifyCloudAPI)
	group.Post("/:provider", handler.Receive)
	group.Post("/:provider/:connectionId", handler.Receive)

	return handler
}

func (h *Webhook) Receive(c *fiber.Ctx) error {
	provider := webhook.ParseProviderName(c.Params("provider"))
	// fasthttp reuses the request buffer once the handler returns.
	body := bytes.Clone(c.Body())

	if provider == webhook.ProviderCloudAPI && h.Options.CloudAPIAppSecret != "" {
		if !validHubSignature(h.Options.CloudAPIAppSecret, body, c.Get(headerHubSignature)) {
			tracectx.Logger(c.UserContext()).Warn("[CLOUDAPI] Rejected webhook with invalid signature")
			return writeError(c, pkgError.UnauthorizedError("invalid "+headerHubSignature))
		}
	}

	result, err := h.Service.Ingest(c.UserContext(), provider, body, webhook.IngestOptions{
		ConnectionID: c.Params("connectionId"),
	})
	if err != nil {
		return writeError(c, err)
	}

	message := "Webhook processed"
	if result.Queued {
		message = "Webhook queued"
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: message,
		Results: result,
	})
}

// VerifyCloudAPI implements Meta's webhook subscription handshake.
func (h *Webhook) VerifyCloudAPI(c *fiber.Ctx) error {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	expected := h.Options.CloudAPIVerifyToken
	if mode != "subscribe" || expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		tracectx.Logger(c.UserContext()).WithField("mode", mode).Warn("[CLOUDAPI] Verification handshake rejected")
		return c.Status(fiber.StatusForbidden).JSON(utils.ResponseData{
			Status:  fiber.StatusForbidden,
			Code:    "FORBIDDEN",
			Message: "verification failed",
		})
	}
	return c.Status(fiber.StatusOK).SendString(challenge)
}

func validHubSignature(secret string, body []byte, header string) bool {
	sig, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
