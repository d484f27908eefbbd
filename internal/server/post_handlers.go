package server

import (
	"reflexion/internal/middleware"
	"reflexion/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetFeed handles GET /api/feeds/:feed
// @Summary List a feed
// @Description Named feeds (pareja, amistad, nocturno) list newest first; maestrisimos and nadiemequiere are ranked by likes
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param feed path string true "Feed name"
// @Param expand query bool false "Show every unlocked character"
// @Success 200 {object} object{feed=string,posts=[]service.PostView}
// @Failure 400 {object} models.ErrorResponse
// @Router /feeds/{feed} [get]
func (s *Server) GetFeed(c *fiber.Ctx) error {
	feed := c.Params("feed")
	posts, err := s.postService.ListFeed(c.UserContext(), feed)
	if err != nil {
		return respondError(c, err)
	}

	expand := c.QueryBool("expand", false)
	views := make([]service.PostView, 0, len(posts))
	for i := range posts {
		views = append(views, service.NewPostView(&posts[i], expand))
	}
	return c.JSON(fiber.Map{
		"feed":  feed,
		"posts": views,
	})
}

// CreatePost handles POST /api/posts
// @Summary Create a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body object{body=string,feed=string,authors=string,credo=string} true "Post"
// @Success 201 {object} service.PostView
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Body    string `json:"body"`
		Feed    string `json:"feed"`
		Authors string `json:"authors"`
		Credo   string `json:"credo"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID: middleware.UserID(c),
		Body:     req.Body,
		Authors:  req.Authors,
		Credo:    req.Credo,
		Feed:     req.Feed,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(service.NewPostView(post, true))
}

// GetPost handles GET /api/posts/:id
// @Summary Get a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Param expand query bool false "Show every unlocked character"
// @Success 200 {object} service.PostView
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.postService.GetPost(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(service.NewPostView(post, c.QueryBool("expand", false)))
}

// UpdatePost handles PUT /api/posts/:id
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req struct {
		Body string `json:"body"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	post, err := s.postService.UpdatePostBody(c.UserContext(), c.Params("id"), middleware.UserID(c), req.Body)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(service.NewPostView(post, true))
}

// LikePost handles POST /api/posts/:id/like
func (s *Server) LikePost(c *fiber.Ctx) error {
	post, liked, err := s.postService.LikePost(c.UserContext(), c.Params("id"), middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"liked": liked,
		"post":  service.NewPostView(post, false),
	})
}

// GetPostLimits handles GET /api/posts/:id/limits
// @Summary Disclosure state of a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path string true "Post ID"
// @Success 200 {object} disclosure.Limits
// @Router /posts/{id}/limits [get]
func (s *Server) GetPostLimits(c *fiber.Ctx) error {
	limits, err := s.postService.Limits(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(limits)
}
