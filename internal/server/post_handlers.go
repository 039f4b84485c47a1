package server

import (
	"io"
	"mime/multipart"
	"strings"

	"vitamora/internal/models"
	"vitamora/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts
// @Summary Feed
// @Description List posts newest first; liked is set for the bearer's user
// @Tags posts
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 20)
	posts, err := s.postService.ListFeed(c.UserContext(), service.ListFeedInput{
		Limit:    page.Limit,
		Offset:   page.Offset,
		ViewerID: s.optionalUserID(c),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /api/posts/:id
// @Summary Get post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// CreatePost handles POST /api/posts. JSON bodies carry text only; multipart
// bodies may add an "image" file.
// @Summary Create post
// @Tags posts
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param content formData string false "Post text"
// @Param image formData file false "Post image"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	in := service.CreatePostInput{UserID: currentUserID(c)}

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		in.Content = c.FormValue("content")
		if file, err := c.FormFile("image"); err == nil {
			content, contentType, err := readFormFile(file)
			if err != nil {
				return respondError(c, err)
			}
			in.Image = content
			in.ImageContentType = contentType
		}
	} else {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.BodyParser(&req); err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid request body"))
		}
		in.Content = req.Content
	}

	post, err := s.postService.CreatePost(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /api/posts/:id
// @Summary Delete post
// @Description Only the author or an admin may delete a post
// @Tags posts
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	}); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetLike handles GET /api/posts/:id/like
// @Summary Like state
// @Description Whether the bearer likes the post, plus its stored like count
// @Tags likes
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeState
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [get]
func (s *Server) GetLike(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id, s.optionalUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(service.LikeState{
		PostID:     post.ID,
		Liked:      post.Liked,
		LikesCount: post.LikesCount,
	})
}

// LikePost handles PUT /api/posts/:id/like
// @Summary Like post
// @Description Idempotent; returns the authoritative like count
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeState
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [put]
func (s *Server) LikePost(c *fiber.Ctx) error {
	return s.setLike(c, true)
}

// UnlikePost handles DELETE /api/posts/:id/like
// @Summary Unlike post
// @Description Idempotent; returns the authoritative like count
// @Tags likes
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} service.LikeState
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [delete]
func (s *Server) UnlikePost(c *fiber.Ctx) error {
	return s.setLike(c, false)
}

func (s *Server) setLike(c *fiber.Ctx, liked bool) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	state, err := s.postService.SetLike(c.UserContext(), service.SetLikeInput{
		UserID: currentUserID(c),
		PostID: id,
		Liked:  liked,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(state)
}

// RecountPost handles POST /api/posts/:id/recount
// @Summary Recount post counters
// @Description Rebuild likes_count and comments_count from their relations. Admin only.
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 403 {object} models.ErrorResponse
// @Router /posts/{id}/recount [post]
func (s *Server) RecountPost(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}
	post, err := s.postService.Recount(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(post)
}

// readFormFile loads an uploaded part. The storage layer enforces type and size.
func readFormFile(file *multipart.FileHeader) ([]byte, string, error) {
	src, err := file.Open()
	if err != nil {
		return nil, "", models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, "", models.NewValidationError("Unable to read uploaded file")
	}
	return content, file.Header.Get(fiber.HeaderContentType), nil
}
