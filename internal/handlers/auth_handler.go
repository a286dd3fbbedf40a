package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"tokostore/internal/middleware"
	"tokostore/internal/services"
)

// AuthHandler handles HTTP requests for authentication.
type AuthHandler struct {
	authService *services.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// RegisterRoutes registers the authentication routes with the Fiber app.
func (h *AuthHandler) RegisterRoutes(router fiber.Router) {
	authRoutes := router.Group("/auth")
	authRoutes.Post("/register", h.HandleRegister)
	authRoutes.Post("/login", h.HandleLogin)
	authRoutes.Post("/refresh", h.HandleRefresh)
	authRoutes.Post("/admin", h.HandleCreateAdmin)

	protected := authRoutes.Group("", middleware.AuthRequired(h.authService))
	protected.Post("/logout", h.HandleLogout)
	protected.Get("/profile", h.HandleGetProfile)
	protected.Patch("/profile", h.HandleUpdateProfile)
}

// RegisterRequest represents the request body for registration.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Username string  `json:"username" validate:"required,min=3,max=50,alphanum"`
	Password string  `json:"password" validate:"required,min=6"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

func (r RegisterRequest) input() services.RegisterInput {
	return services.RegisterInput{Email: r.Email, Username: r.Username, Password: r.Password, Name: r.Name}
}

// HandleRegister handles new user registration.
func (h *AuthHandler) HandleRegister(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	result, err := h.authService.RegisterUser(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":      "User registered successfully",
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	})
}

// HandleCreateAdmin creates the first administrator account.
func (h *AuthHandler) HandleCreateAdmin(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	admin, err := h.authService.CreateAdmin(c.UserContext(), req.input())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Admin user created successfully",
		"user":    admin,
	})
}

// LoginRequest represents the request body for login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// HandleLogin handles user login and issues a token pair.
func (h *AuthHandler) HandleLogin(c *fiber.Ctx) error {
	var req LoginRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	result, err := h.authService.LoginUser(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message":      "Login successful",
		"user":         result.User,
		"accessToken":  result.AccessToken,
		"refreshToken": result.RefreshToken,
	})
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// HandleRefresh rotates a refresh token.
func (h *AuthHandler) HandleRefresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	pair, err := h.authService.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(pair)
}

func (h *AuthHandler) HandleLogout(c *fiber.Ctx) error {
	if err := h.authService.Logout(c.UserContext(), middleware.CallerFrom(c).UserID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func (h *AuthHandler) HandleGetProfile(c *fiber.Ctx) error {
	user, err := h.authService.GetProfile(c.UserContext(), middleware.CallerFrom(c).UserID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Username *string `json:"username" validate:"omitempty,min=3,max=50,alphanum"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
}

func (h *AuthHandler) HandleUpdateProfile(c *fiber.Ctx) error {
	var req UpdateProfileRequest
	if err := bind(c, h.validate, &req); err != nil {
		return err
	}
	user, err := h.authService.UpdateProfile(c.UserContext(), middleware.CallerFrom(c).UserID, services.ProfileUpdate{
		Email:    req.Email,
		Username: req.Username,
		Name:     req.Name,
	})
	if err != nil {
		return err
	}
	return c.JSON(user)
}
