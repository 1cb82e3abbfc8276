package handler

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suteetoe/scouting-service/internal/access"
	"github.com/suteetoe/scouting-service/internal/mediaproxy"
	mid "github.com/suteetoe/scouting-service/internal/middleware"
	"github.com/suteetoe/scouting-service/internal/report"
	"github.com/suteetoe/scouting-service/internal/response"
	"github.com/suteetoe/scouting-service/internal/scoped"
	"github.com/suteetoe/scouting-service/pkg/apperror"
	"github.com/suteetoe/scouting-service/pkg/config"
	"github.com/suteetoe/scouting-service/pkg/database"
	"github.com/suteetoe/scouting-service/pkg/logger"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

var (
	appConfig     *config.Config
	mediaProxy    *mediaproxy.Proxy
	reportService *report.Service
)

// InitConfig sets the configuration the health route reports on.
func InitConfig(cfg *config.Config) {
	appConfig = cfg
}

// InitMediaProxy sets the proxy serving avatar images.
func InitMediaProxy(p *mediaproxy.Proxy) {
	mediaProxy = p
}

// InitReportService sets the scouting report service.
func InitReportService(s *report.Service) {
	reportService = s
}

// fieldErrors maps json field names to validation messages.
type fieldErrors map[string]string

func (f fieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+": "+v)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// bindRequest binds the JSON body into req and validates it.
func bindRequest(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperror.Invalid("invalid request body")
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := fieldErrors{}
			for _, fe := range verrs {
				fields[fe.Field()] = describe(fe)
			}
			return fields
		}
		return apperror.Invalid("invalid request")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	}
	return "is invalid"
}

// fail writes err as an envelope and logs it.
func fail(c echo.Context, err error) error {
	var fields fieldErrors
	if errors.As(err, &fields) {
		return response.BadRequest(c, "validation failed", fields)
	}

	log := logger.FromContext(c)
	if apperror.ErrorCode(err) == apperror.EInternal {
		log.Error("Request failed", zap.Error(err))
	} else {
		log.Debug("Request rejected", zap.Error(err))
	}
	return response.Error(c, err)
}

// tenantStore returns the data store of the authorized tenant.
func tenantStore(c echo.Context) (*scoped.Store, *access.TenantContext) {
	tc := mid.TenantFrom(c)
	return scoped.For(database.GetDB(), tc.TenantID), tc
}

// flexTime accepts RFC 3339 timestamps, "2006-01-02T15:04" and plain dates.
// An empty string decodes to the zero time, which clears the field.
type flexTime struct {
	time.Time
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	parsed, err := parseTime(s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}

// ptr returns the time as a nullable column value.
func (t *flexTime) ptr() *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a time", s)
}

// queryTime parses an optional time query parameter.
func queryTime(c echo.Context, name string) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseTime(raw)
	if err != nil {
		return nil, apperror.Invalid("%s must be a date or RFC 3339 time", name)
	}
	return &t, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// nullable turns "" into NULL.
func nullable(s *string) *string {
	v := trimmed(s)
	if v == "" {
		return nil
	}
	return &v
}
