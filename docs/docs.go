// Package docs registers the OpenAPI description of the HTTP API with swag.
// Regenerate with: swag init -g cmd/server/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/signup": {"post": {"tags": ["auth"], "summary": "User signup", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/service.AuthSession"}}, "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}, "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/auth/login": {"post": {"tags": ["auth"], "summary": "User login", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.AuthSession"}}, "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}}}},
        "/auth/refresh": {"post": {"tags": ["auth"], "summary": "Refresh session", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.AuthSession"}}}}},
        "/auth/logout": {"post": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Logout", "responses": {"204": {"description": "No Content"}}}},
        "/session": {"get": {"security": [{"BearerAuth": []}], "tags": ["auth"], "summary": "Current session", "responses": {"200": {"description": "OK"}}}},
        "/posts": {
            "get": {"tags": ["posts"], "summary": "Feed", "parameters": [{"type": "integer", "name": "limit", "in": "query"}, {"type": "integer", "name": "offset", "in": "query"}], "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Post"}}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["posts"], "summary": "Create post", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Post"}}}}
        },
        "/posts/{id}": {
            "get": {"tags": ["posts"], "summary": "Get post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["posts"], "summary": "Delete post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}
        },
        "/posts/{id}/like": {
            "get": {"tags": ["likes"], "summary": "Like state", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.LikeState"}}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["likes"], "summary": "Like post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.LikeState"}}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["likes"], "summary": "Unlike post", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/service.LikeState"}}}}
        },
        "/posts/{id}/recount": {"post": {"security": [{"BearerAuth": []}], "tags": ["posts"], "summary": "Recount post counters", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Post"}}}}},
        "/posts/{id}/comments": {
            "get": {"tags": ["comments"], "summary": "List comments", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Comment"}}}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["comments"], "summary": "Add comment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Comment"}}}}
        },
        "/posts/{id}/comments/{commentId}": {"delete": {"security": [{"BearerAuth": []}], "tags": ["comments"], "summary": "Delete comment", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}, {"type": "integer", "name": "commentId", "in": "path", "required": true}], "responses": {"204": {"description": "No Content"}}}},
        "/profiles/me": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["profiles"], "summary": "Get current profile", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Profile"}}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["profiles"], "summary": "Update current profile", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Profile"}}}}
        },
        "/profiles/me/image": {"post": {"security": [{"BearerAuth": []}], "consumes": ["multipart/form-data"], "tags": ["profiles"], "summary": "Upload avatar", "parameters": [{"type": "file", "name": "image", "in": "formData", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Profile"}}}}},
        "/profiles/{id}": {"get": {"tags": ["profiles"], "summary": "Get profile", "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Profile"}}}}},
        "/ws/realtime": {"get": {"tags": ["realtime"], "summary": "Realtime changes", "parameters": [{"type": "string", "name": "tables", "in": "query", "required": true}], "responses": {"101": {"description": "Switching Protocols"}}}}
    },
    "definitions": {
        "models.ErrorResponse": {"type": "object", "properties": {"error": {"type": "string"}, "code": {"type": "string"}, "details": {"type": "string"}}},
        "models.Profile": {"type": "object", "properties": {"id": {"type": "integer"}, "first_name": {"type": "string"}, "last_name": {"type": "string"}, "phone": {"type": "string"}, "address": {"type": "string"}, "profile_image_url": {"type": "string"}, "role": {"type": "string"}}},
        "models.Post": {"type": "object", "properties": {"id": {"type": "integer"}, "author_id": {"type": "integer"}, "content": {"type": "string"}, "image_url": {"type": "string"}, "likes_count": {"type": "integer"}, "comments_count": {"type": "integer"}, "created_at": {"type": "string"}, "liked": {"type": "boolean"}, "author": {"$ref": "#/definitions/models.Profile"}}},
        "models.Comment": {"type": "object", "properties": {"id": {"type": "integer"}, "post_id": {"type": "integer"}, "user_id": {"type": "integer"}, "content": {"type": "string"}, "created_at": {"type": "string"}, "author": {"$ref": "#/definitions/models.Profile"}}},
        "service.AuthSession": {"type": "object", "properties": {"access_token": {"type": "string"}, "refresh_token": {"type": "string"}, "expires_at": {"type": "string"}, "user_id": {"type": "integer"}, "profile": {"$ref": "#/definitions/models.Profile"}}},
        "service.LikeState": {"type": "object", "properties": {"post_id": {"type": "integer"}, "liked": {"type": "boolean"}, "likes_count": {"type": "integer"}, "changed": {"type": "boolean"}}}
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{},
	Title:            "Vitamora API",
	Description:      "Posts, likes, comments and profiles with realtime change delivery.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
