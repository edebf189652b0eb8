package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jobtrack/jobtrack/pkg/apiserver/middleware"
	"github.com/jobtrack/jobtrack/pkg/apperr"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Data    interface{}       `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, envelope{Success: true, Message: message, Data: data})
}

func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, envelope{Message: "Internal server error"})
		return
	}
	c.JSON(apperr.StatusCode(err), envelope{Message: err.Error()})
}

// bindJSON decodes the body into req and writes a 400 on failure. Validator
// failures are reported per field using the json names.
func bindJSON(c *gin.Context, req interface{}) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make(map[string]string, len(validationErrors))
		for _, fe := range validationErrors {
			fields[fieldPath(fe)] = fe.Tag()
		}
		c.JSON(http.StatusBadRequest, envelope{Message: "Validation failed", Errors: fields})
		return false
	}

	c.JSON(http.StatusBadRequest, envelope{Message: "Invalid request body"})
	return false
}

// fieldPath strips the request type name from the validator namespace,
// turning "addItemsRequest.item_assignments[0].item_id" into
// "item_assignments[0].item_id".
func fieldPath(fe validator.FieldError) string {
	namespace := fe.Namespace()
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return fe.Field()
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	parsed, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || parsed == 0 {
		c.JSON(http.StatusBadRequest, envelope{Message: "Invalid " + name})
		return 0, false
	}
	return uint(parsed), true
}

// RegisterJSONFieldNames makes validator report fields by their json tag.
func RegisterJSONFieldNames(v *validator.Validate) {
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
}
