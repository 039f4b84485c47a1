// Package client talks to a running Vitamora API over HTTP and WebSocket.
// It implements the social package's store interfaces so the same views run
// against a remote server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"vitamora/internal/models"
	"vitamora/internal/session"
	"vitamora/internal/social"
)

const defaultTimeout = 15 * time.Second

// Client is bound to one session; every request carries its access token.
type Client struct {
	baseURL string
	http    *http.Client
	session *session.Context
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, which times out after 15s.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New returns a Client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, sess *session.Context, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		session: sess,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session the client acts as.
func (c *Client) Session() *session.Context {
	return c.session
}

var _ social.Store = (*Client)(nil)

func (c *Client) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	var posts []*models.Post
	if err := c.do(ctx, http.MethodGet, "/api/posts?"+q.Encode(), nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPost(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d", postID), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) GetProfile(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/profiles/%d", id), nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) IsLiked(ctx context.Context, postID uint) (bool, error) {
	var res social.LikeResult
	if err := c.do(ctx, http.MethodGet, likePath(postID), nil, &res); err != nil {
		return false, err
	}
	return res.Liked, nil
}

// SetLike is idempotent: PUT likes, DELETE unlikes.
func (c *Client) SetLike(ctx context.Context, postID uint, liked bool) (social.LikeResult, error) {
	method := http.MethodDelete
	if liked {
		method = http.MethodPut
	}
	var res social.LikeResult
	err := c.do(ctx, method, likePath(postID), nil, &res)
	return res, err
}

func (c *Client) ListComments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := c.do(ctx, http.MethodGet, commentsPath(postID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (c *Client) CreateComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	var comment models.Comment
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, commentsPath(postID), body, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) DeleteComment(ctx context.Context, postID, commentID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", commentsPath(postID), commentID), nil, nil)
}

// CreatePost publishes content with an optional image.
func (c *Client) CreatePost(ctx context.Context, content string, image []byte, filename string) (*models.Post, error) {
	var post models.Post
	if len(image) == 0 {
		err := c.do(ctx, http.MethodPost, "/api/posts", map[string]string{"content": content}, &post)
		if err != nil {
			return nil, err
		}
		return &post, nil
	}
	fields := map[string]string{"content": content}
	if err := c.upload(ctx, "/api/posts", fields, "image", filename, image, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, postID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), nil, nil)
}

// ProfilePatch leaves nil fields unchanged.
type ProfilePatch struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	Address   *string `json:"address,omitempty"`
}

func (c *Client) MyProfile(ctx context.Context) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profiles/me", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch ProfilePatch) (*models.Profile, error) {
	var profile models.Profile
	if err := c.do(ctx, http.MethodPut, "/api/profiles/me", patch, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UploadAvatar replaces the session user's profile image.
func (c *Client) UploadAvatar(ctx context.Context, image []byte, filename string) (*models.Profile, error) {
	var profile models.Profile
	if err := c.upload(ctx, "/api/profiles/me/image", nil, "image", filename, image, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

func likePath(postID uint) string     { return fmt.Sprintf("/api/posts/%d/like", postID) }
func commentsPath(postID uint) string { return fmt.Sprintf("/api/posts/%d/comments", postID) }

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return models.NewValidationError("Invalid request: " + err.Error())
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, out)
}

func (c *Client) upload(ctx context.Context, path string, fields map[string]string, field, filename string, content []byte, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return models.NewInternalError(err)
		}
	}
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return models.NewInternalError(err)
	}
	if _, err := part.Write(content); err != nil {
		return models.NewInternalError(err)
	}
	if err := mw.Close(); err != nil {
		return models.NewInternalError(err)
	}
	return c.send(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), out)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return models.NewValidationError("Invalid request: " + err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.session != nil {
		if token := c.session.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.NewNetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return models.NewNetworkError(err)
		}
		return models.NewRemoteError("Unreadable response from server", err)
	}
	return nil
}

// decodeError rebuilds the server's AppError from its error body.
func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body models.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(resp.StatusCode)
		}
	}
	code := body.Code
	if code == "" {
		code = codeForStatus(resp.StatusCode)
	}
	appErr := &models.AppError{Code: code, Message: body.Error}
	if body.Details != "" {
		appErr.Err = errors.New(body.Details)
	}
	return appErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return models.CodeValidation
	case http.StatusUnauthorized:
		return models.CodeAuthenticationRequired
	case http.StatusForbidden:
		return models.CodeUnauthorized
	case http.StatusNotFound:
		return models.CodeNotFound
	case http.StatusConflict:
		return models.CodeConflict
	default:
		return models.CodeRemote
	}
}
