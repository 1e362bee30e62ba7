package rest

import (
	"errors"
	"net/http"
	"strings"

	pkgError "github.com/AzielCF/az-wap-ingest/pkg/error"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/AzielCF/az-wap-ingest/pkg/utils"
	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error as ResponseData. Oversized bodies are
// rejected by fiber before any handler runs and end up here as 413.
func ErrorHandler(maxBodyBytes int64) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			if fe.Code == fiber.StatusRequestEntityTooLarge {
				size := c.Request().Header.ContentLength()
				tracectx.Logger(c.UserContext()).WithFields(map[string]interface{}{
					"path":  c.Path(),
					"size":  humanize.Bytes(uint64(max(size, 0))),
					"limit": humanize.Bytes(uint64(maxBodyBytes)),
				}).Warn("[REST] Rejected oversized request body")
				err = pkgError.PayloadTooLargeError("request body exceeds " + humanize.Bytes(uint64(maxBodyBytes)))
			} else {
				return c.Status(fe.Code).JSON(utils.ResponseData{
					Status:  fe.Code,
					Code:    strings.ToUpper(strings.ReplaceAll(http.StatusText(fe.Code), " ", "_")),
					Message: fe.Message,
				})
			}
		}
		return writeError(c, err)
	}
}

func writeError(c *fiber.Ctx, err error) error {
	ge := pkgError.AsGenericError(err)
	return c.Status(ge.StatusCode()).JSON(utils.ResponseData{
		Status:  ge.StatusCode(),
		Code:    ge.ErrCode(),
		Message: ge.Error(),
	})
}
