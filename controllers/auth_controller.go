// controllers/auth_controller.go
package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/datamartgh/datamart_backend/middleware"
	"github.com/datamartgh/datamart_backend/models"
	"github.com/datamartgh/datamart_backend/repositories"
	"github.com/datamartgh/datamart_backend/utils"
)

// AuthController handles agent and admin login
type AuthController struct {
	agents *repositories.AgentRepository
}

func NewAuthController(agents *repositories.AgentRepository) *AuthController {
	return &AuthController{agents: agents}
}

// Login verifies credentials and issues a JWT
func (ac *AuthController) Login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Email and password are required",
		})
	}

	agent, err := ac.agents.FindByEmail(c.Request().Context(), req.Email)
	if err != nil || !utils.CheckPasswordHash(req.Password, agent.Password) {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid email or password",
		})
	}
	if !agent.Active {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Account is deactivated",
		})
	}

	token, err := middleware.GenerateJWT(agent.ID.Hex(), agent.Email, agent.UserType)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Failed to generate token",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"token": token,
			"user": map[string]interface{}{
				"id":       agent.ID.Hex(),
				"fullName": agent.FullName,
				"email":    agent.Email,
				"userType": agent.UserType,
			},
		},
	})
}
