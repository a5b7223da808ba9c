package receiver

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	usersync "github.com/goliatone/go-user-sync"
)

// ErrorHandler renders errors that escape the handlers as JSON. Set it as
// fiber.Config.ErrorHandler on the app the controller is registered on.
func ErrorHandler(logger usersync.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = usersync.ResolveLogger("receiver", nil, nil)
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(MessageResponse{Message: fiberErr.Message})
		}

		var richErr *goerrors.Error
		if !errors.As(err, &richErr) {
			richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
				WithCode(goerrors.CodeInternal)
		}

		logger.Error("unhandled receiver error",
			"error", richErr.Message,
			"category", richErr.Category.String(),
			"path", c.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		status := richErr.Code
		if status < http.StatusBadRequest {
			status = http.StatusInternalServerError
		}
		return c.Status(status).JSON(MessageResponse{Message: richErr.Message})
	}
}
