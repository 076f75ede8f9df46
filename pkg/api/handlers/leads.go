package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/pipeworks-za/backend/pkg/api/errors"
	"github.com/pipeworks-za/backend/pkg/domain"
	"github.com/pipeworks-za/backend/pkg/intake"
)

// MaxAttachmentSize caps uploaded form images at 5MB
const MaxAttachmentSize = 5 << 20

// LeadsHandler handles contact form submissions
type LeadsHandler struct {
	intakeService *intake.Service
}

// NewLeadsHandler creates a new leads handler
func NewLeadsHandler(intakeService *intake.Service) *LeadsHandler {
	return &LeadsHandler{
		intakeService: intakeService,
	}
}

// Submit handles a contact or quote form submission, either as JSON or
// as multipart form data carrying an optional image
// POST /api/leads
func (h *LeadsHandler) Submit(c echo.Context) error {
	var req intake.FormRequest

	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		parsed, err := h.parseMultipart(c)
		if parsed == nil {
			// Response already written by the parser
			return err
		}
		req = *parsed
	} else {
		if err := c.Bind(&req); err != nil {
			return errors.ValidationError(c, err)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	lead, err := h.intakeService.SubmitForm(ctx, req)
	if err != nil {
		switch {
		case domain.IsValidation(err):
			var de *domain.DomainError
			if stderrors.As(err, &de) {
				return errors.ValidationErrorWithMessage(c, de.Message)
			}
			return errors.ValidationError(c, err)
		case domain.IsDuplicate(err):
			return errors.ConflictError(c, intake.DuplicateMessage)
		default:
			return errors.InternalError(c, err)
		}
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":      lead.ID,
		"status":  lead.Status,
		"message": "Thanks! David will contact you soon.",
	})
}

func (h *LeadsHandler) parseMultipart(c echo.Context) (*intake.FormRequest, error) {
	req := &intake.FormRequest{
		Name:        c.FormValue("name"),
		Phone:       c.FormValue("phone"),
		Email:       c.FormValue("email"),
		Message:     c.FormValue("message"),
		Location:    c.FormValue("location"),
		ServiceType: c.FormValue("serviceType"),
		Source:      c.FormValue("source"),
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		// No attachment is fine
		return req, nil
	}

	if fileHeader.Size > MaxAttachmentSize {
		return nil, errors.ValidationErrorWithMessage(c, "Image must be 5MB or smaller")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, errors.InternalError(c, err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxAttachmentSize+1))
	if err != nil {
		return nil, errors.InternalError(c, err)
	}
	if len(data) > MaxAttachmentSize {
		return nil, errors.ValidationErrorWithMessage(c, "Image must be 5MB or smaller")
	}

	contentType := http.DetectContentType(data)
	if contentType != "image/jpeg" && contentType != "image/png" {
		return nil, errors.ValidationErrorWithMessage(c, "Only JPEG and PNG images are accepted")
	}

	req.Attachment = data
	req.AttachmentName = fileHeader.Filename
	req.AttachmentType = contentType
	return req, nil
}
