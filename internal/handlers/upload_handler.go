package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"tokostore/internal/apperrors"
	"tokostore/internal/services"
	"tokostore/internal/storage"
)

// UploadHandler stores standalone product images.
type UploadHandler struct {
	images   services.ImageStore
	validate *validator.Validate
}

func NewUploadHandler(images services.ImageStore) *UploadHandler {
	return &UploadHandler{images: images, validate: validator.New()}
}

func (h *UploadHandler) RegisterRoutes(router fiber.Router, admin ...fiber.Handler) {
	upload := router.Group("/upload", admin...)
	upload.Post("/image", h.HandleUpload)
	upload.Delete("/image", h.HandleDelete)
}

type DeleteImageRequest struct {
	ImageURL string `json:"imageUrl" validate:"required,url"`
}

// HandleUpload stores the multipart "file" and returns its URL.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindBadRequest, "no file uploaded")
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrapf(err, "open upload %s", fh.Filename)
	}
	defer f.Close()

	url, err := h.images.Upload(c.UserContext(), uuid.New().String(), storage.Image{Filename: fh.Filename, Body: f})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Image uploaded successfully",
		"url":     url,
	})
}

func (h *UploadHandler) HandleDelete(c *fiber.Ctx) error {
	var req DeleteImageRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	if err := h.images.Delete(c.UserContext(), req.ImageURL); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Image deleted successfully"})
}
