package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/civictickets/internal/models"
	"github.com/example/civictickets/internal/service"
)

func (s *Server) register(c *gin.Context) {
	var payload struct {
		Name            string `json:"name" form:"name"`
		Email           string `json:"email" form:"email"`
		Password        string `json:"password" form:"password"`
		ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
		Document        string `json:"document" form:"document"`
		DocumentType    string `json:"document_type" form:"document_type"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		s.writeError(c, models.NewValidationError("body", err.Error()))
		return
	}
	p, err := s.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:            payload.Name,
		Email:           payload.Email,
		Password:        payload.Password,
		ConfirmPassword: payload.ConfirmPassword,
		Document:        payload.Document,
		DocumentType:    models.DocumentType(payload.DocumentType),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "user registered", "user": p})
}

func (s *Server) login(c *gin.Context) {
	var payload struct {
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.ShouldBind(&payload); err != nil {
		s.writeError(c, models.NewValidationError("body", err.Error()))
		return
	}
	token, p, err := s.auth.Login(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": p})
}
