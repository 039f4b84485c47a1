package server

import (
	"vitamora/internal/models"
	"vitamora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMyProfile handles GET /api/profiles/me
// @Summary Get current profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.Profile
// @Failure 401 {object} models.ErrorResponse
// @Router /profiles/me [get]
func (s *Server) GetMyProfile(c *fiber.Ctx) error {
	profile, err := s.profileService.GetProfile(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// GetProfile handles GET /api/profiles/:id
// @Summary Get profile
// @Tags profiles
// @Produce json
// @Param id path int true "Profile ID"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{id} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	profile, err := s.profileService.GetProfile(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile handles PUT /api/profiles/me. Absent fields are left as they are.
// @Summary Update current profile
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{first_name=string,last_name=string,phone=string,address=string} true "Profile patch"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Router /profiles/me [put]
func (s *Server) UpdateMyProfile(c *fiber.Ctx) error {
	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Phone     *string `json:"phone"`
		Address   *string `json:"address"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	profile, err := s.profileService.UpdateProfile(c.UserContext(), service.UpdateProfileInput{
		UserID:    currentUserID(c),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Address:   req.Address,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}

// UploadProfileImage handles POST /api/profiles/me/image
// @Summary Upload avatar
// @Description Multipart "image" field; image/* only, at most the configured size
// @Tags profiles
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Avatar image"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /profiles/me/image [post]
func (s *Server) UploadProfileImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}
	content, contentType, err := readFormFile(file)
	if err != nil {
		return respondError(c, err)
	}

	profile, err := s.profileService.UploadProfileImage(c.UserContext(), service.UploadProfileImageInput{
		UserID:      currentUserID(c),
		Content:     content,
		ContentType: contentType,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profile)
}
