package middleware

import (
	"fmt"

	pkgError "github.com/AzielCF/az-wap-ingest/pkg/error"
	"github.com/AzielCF/az-wap-ingest/pkg/tracectx"
	"github.com/AzielCF/az-wap-ingest/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

func Recovery() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		defer func() {
			err := recover()
			if err != nil {
				var res utils.ResponseData
				res.Status = 500
				res.Code = "INTERNAL_SERVER_ERROR"
				res.Message = fmt.Sprintf("%v", err)

				tracectx.Logger(ctx.UserContext()).
					WithField("path", ctx.Path()).
					Errorf("[REST] Panic recovered in middleware: %v", err)

				if ge, ok := err.(pkgError.GenericError); ok {
					res.Status = ge.StatusCode()
					res.Code = ge.ErrCode()
					res.Message = ge.Error()
				}

				_ = ctx.Status(res.Status).JSON(res)
			}
		}()

		return ctx.Next()
	}
}
