package server

import (
	"vitamora/internal/middleware"
	"vitamora/internal/models"
	"vitamora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a new account with its profile and return a session
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string,first_name=string,last_name=string,phone=string} true "Signup request"
// @Success 201 {object} service.AuthSession
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Phone     string `json:"phone"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	session, err := s.authService.SignUp(c.UserContext(), service.SignUpInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{email=string,password=string} true "Login credentials"
// @Success 200 {object} service.AuthSession
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}
	if req.Email == "" || req.Password == "" {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Email and password are required"))
	}

	session, err := s.authService.SignIn(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// Refresh handles POST /api/auth/refresh
// @Summary Refresh session
// @Description Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body object{refresh_token=string} true "Refresh token"
// @Success 200 {object} service.AuthSession
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/refresh [post]
func (s *Server) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	session, err := s.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(session)
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the access token and, if given, the refresh token
// @Tags auth
// @Accept json
// @Security BearerAuth
// @Param request body object{refresh_token=string} false "Refresh token to revoke"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	// The body is optional.
	_ = c.BodyParser(&req)

	if err := s.authService.SignOut(c.UserContext(), bearerToken(c), req.RefreshToken); err != nil {
		return respondError(c, err)
	}
	// Live connections opened with the revoked session go too; clients
	// reconnect under whatever session they hold now.
	if n := s.hub.Disconnect(currentUserID(c)); n > 0 {
		middleware.Logger.Info("closed realtime connections on logout", "user_id", currentUserID(c), "connections", n)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetSession handles GET /api/session
// @Summary Current session
// @Description Resolve the bearer token to its user and profile
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user_id=int,profile=models.Profile}
// @Failure 401 {object} models.ErrorResponse
// @Router /session [get]
func (s *Server) GetSession(c *fiber.Ctx) error {
	userID := currentUserID(c)
	profile, err := s.profileService.GetProfile(c.UserContext(), userID)
	if err != nil && !models.IsCode(err, models.CodeNotFound) {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"profile": profile,
	})
}
