package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	apierrors "github.com/jordanlanch/funnelsync/pkg/api/errors"
	"github.com/jordanlanch/funnelsync/pkg/fieldstore"
	"github.com/jordanlanch/funnelsync/pkg/models"
	"github.com/jordanlanch/funnelsync/pkg/vault"
)

// FieldStore is the write side of the field store
type FieldStore interface {
	SaveField(ctx context.Context, in fieldstore.SaveFieldInput) (*vault.Field, error)
	ApproveSection(ctx context.Context, funnelID, sectionID string) (int64, error)
	DeleteCustomField(ctx context.Context, funnelID, sectionID, fieldID string) error
}

// FieldsHandler handles field edits and approvals
type FieldsHandler struct {
	store     FieldStore
	validator *validator.Validate
}

// NewFieldsHandler creates a new fields handler
func NewFieldsHandler(store FieldStore) *FieldsHandler {
	return &FieldsHandler{
		store:     store,
		validator: validator.New(),
	}
}

// SaveField stores a field value. Saving resets the field's approval.
func (h *FieldsHandler) SaveField(c echo.Context) error {
	var req models.SaveFieldRequest
	if err := c.Bind(&req); err != nil {
		return apierrors.ValidationError(c, err)
	}
	if err := h.validator.Struct(req); err != nil {
		return apierrors.ValidationError(c, err)
	}

	fieldType := vault.FieldType(req.Type)
	value, ok := vault.ParseValue(fieldType, string(req.Value))
	if !ok {
		return apierrors.ValidationError(c, errors.New("value does not match field type "+req.Type))
	}

	field, err := h.store.SaveField(c.Request().Context(), fieldstore.SaveFieldInput{
		FunnelID:  c.Param("funnel_id"),
		SectionID: c.Param("section_id"),
		FieldID:   c.Param("field_id"),
		Type:      fieldType,
		Value:     value,
		IsCustom:  req.IsCustom,
	})
	if err != nil {
		return apierrors.Handle(c, err)
	}

	return c.JSON(http.StatusOK, field)
}

// ApproveSection approves every pending field of a section
func (h *FieldsHandler) ApproveSection(c echo.Context) error {
	funnelID := c.Param("funnel_id")
	sectionID := c.Param("section_id")

	n, err := h.store.ApproveSection(c.Request().Context(), funnelID, sectionID)
	if err != nil {
		return apierrors.DatabaseError(c, err)
	}

	return c.JSON(http.StatusOK, models.ApproveSectionResponse{
		FunnelID:  funnelID,
		SectionID: sectionID,
		Approved:  n,
	})
}

// DeleteField removes a custom field
func (h *FieldsHandler) DeleteField(c echo.Context) error {
	err := h.store.DeleteCustomField(c.Request().Context(), c.Param("funnel_id"), c.Param("section_id"), c.Param("field_id"))
	if err != nil {
		// field store sentinels carry their domain code
		return apierrors.Handle(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
