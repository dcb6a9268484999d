// Package docs registers the taskmarket OpenAPI description with swag.
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
        "/auth/register": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Register a new user",
                "parameters": [
                    {"description": "Registration data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.RegisterResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/login": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login user",
                "parameters": [
                    {"description": "Login credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Refresh access token",
                "parameters": [
                    {"description": "Refresh token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RefreshRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Logout user",
                "parameters": [
                    {"description": "Refresh token", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LogoutRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.MessageResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.ProfileResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/projects": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["projects"],
                "summary": "Create a project",
                "parameters": [
                    {"description": "Project data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateProjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Project"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/projects/mine": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["projects"],
                "summary": "List projects owned by the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Project"}}}
                }
            }
        },
        "/tasks": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Create a task under an owned project",
                "parameters": [
                    {"description": "Task data", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handler.CreateTaskRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Task"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/tasks/mine": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "List tasks relevant to the caller",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Task"}}}
                }
            }
        },
        "/tasks/project/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "List tasks of a project",
                "parameters": [{"type": "string", "description": "Project ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.Task"}}}
                }
            }
        },
        "/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Get a task",
                "parameters": [{"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Task"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/start": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Start an assigned task",
                "parameters": [{"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Task"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/submit": {
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Submit work for an in-progress task",
                "parameters": [
                    {"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true},
                    {"type": "number", "description": "Hours spent", "name": "hours_spent", "in": "formData", "required": true},
                    {"type": "file", "description": "Solution file", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Task"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/solution": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/octet-stream"],
                "tags": ["tasks"],
                "summary": "Download the solution of a paid task",
                "parameters": [{"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/tasks/{id}/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["tasks"],
                "summary": "Lifecycle history of a task",
                "parameters": [{"type": "string", "description": "Task ID", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/model.TaskEvent"}}}
                }
            }
        },
        "/payments/{task_id}": {
            "post": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["payments"],
                "summary": "Pay for a submitted task",
                "parameters": [{"type": "string", "description": "Task ID", "name": "task_id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/model.Payment"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/admin/stats": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Platform statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/service.Stats"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/errors.ErrorResponse"}}
                }
            }
        },
        "/admin/users": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "List users",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/handler.ProfileResponse"}}}
                }
            }
        }
    },
    "definitions": {
        "errors.ErrorResponse": {
            "type": "object",
            "properties": {"code": {"type": "string"}, "error": {"type": "string"}}
        },
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "name", "password", "role"],
            "properties": {
                "email": {"type": "string"},
                "name": {"type": "string"},
                "password": {"type": "string", "minLength": 6},
                "role": {"type": "string", "enum": ["buyer", "developer", "admin"]}
            }
        },
        "handler.RegisterResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}, "user": {"$ref": "#/definitions/handler.ProfileResponse"}}
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.RefreshRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {"refresh_token": {"type": "string"}}
        },
        "handler.LogoutRequest": {
            "type": "object",
            "required": ["refresh_token"],
            "properties": {"refresh_token": {"type": "string"}}
        },
        "handler.AuthResponse": {
            "type": "object",
            "properties": {"access_token": {"type": "string"}, "refresh_token": {"type": "string"}, "role": {"type": "string"}}
        },
        "handler.MessageResponse": {
            "type": "object",
            "properties": {"message": {"type": "string"}}
        },
        "handler.ProfileResponse": {
            "type": "object",
            "properties": {"id": {"type": "string"}, "name": {"type": "string"}, "email": {"type": "string"}, "role": {"type": "string"}}
        },
        "handler.CreateProjectRequest": {
            "type": "object",
            "required": ["title"],
            "properties": {"title": {"type": "string"}, "description": {"type": "string"}}
        },
        "handler.CreateTaskRequest": {
            "type": "object",
            "required": ["assigned_developer", "hourly_rate", "project_id", "title"],
            "properties": {
                "project_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "assigned_developer": {"type": "string"},
                "hourly_rate": {"type": "number", "example": 50}
            }
        },
        "model.Project": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "buyer_id": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "model.Task": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "project_id": {"type": "string"},
                "assigned_developer": {"type": "string"},
                "hourly_rate": {"type": "string"},
                "status": {"type": "string", "enum": ["todo", "in_progress", "submitted", "paid"]},
                "hours_spent": {"type": "string"},
                "solution_file": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "model.TaskEvent": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "task_id": {"type": "string"},
                "actor_id": {"type": "string"},
                "from_status": {"type": "string"},
                "to_status": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "model.Payment": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "task_id": {"type": "string"},
                "buyer_id": {"type": "string"},
                "amount": {"type": "string"},
                "status": {"type": "string"},
                "created_at": {"type": "string"}
            }
        },
        "service.Stats": {
            "type": "object",
            "properties": {
                "total_users": {"type": "integer"},
                "total_projects": {"type": "integer"},
                "total_tasks": {"type": "integer"},
                "tasks_by_status": {"type": "object", "additionalProperties": {"type": "integer"}},
                "total_revenue": {"type": "string"},
                "total_paid_hours": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Taskmarket API",
	Description:      "Marketplace where buyers post tasks, developers deliver them and buyers pay per hour.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
