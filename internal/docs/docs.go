// Package docs registers the OpenAPI document served at /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/v1/batches": {
            "get": {"tags": ["batches"], "summary": "List batches; administrators see every batch", "parameters": [
                {"type": "string", "name": "kind", "in": "query"},
                {"type": "string", "name": "status", "in": "query"},
                {"type": "integer", "name": "limit", "in": "query"},
                {"type": "integer", "name": "offset", "in": "query"}
            ], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["batches"], "summary": "Submit a supply, borrow or reservation request", "parameters": [
                {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SubmitBatchRequest"}}
            ], "responses": {"201": {"description": "Created"}, "400": {"description": "INVALID_REQUEST"}}}
        },
        "/v1/batches/{id}": {
            "get": {"tags": ["batches"], "summary": "Batch with its items", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}, "404": {"description": "NOT_FOUND"}}}
        },
        "/v1/batches/{id}/cancel": {
            "post": {"tags": ["batches"], "summary": "Cancel a pending batch (owner)", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}, "409": {"description": "CONFLICT"}}}
        },
        "/v1/batches/{id}/claim": {
            "post": {"tags": ["batches"], "summary": "Hand out an approved batch", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}, "409": {"description": "INSUFFICIENT_STOCK or CONFLICT"}}}
        },
        "/v1/request-items/{id}/approve": {
            "post": {"tags": ["request-items"], "summary": "Approve a requested item", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true},
                {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ApproveItemRequest"}}
            ], "responses": {"200": {"description": "OK"}, "409": {"description": "INSUFFICIENT_STOCK"}}}
        },
        "/v1/request-items/{id}/reject": {
            "post": {"tags": ["request-items"], "summary": "Reject a requested item", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/request-items/{id}/return": {
            "post": {"tags": ["request-items"], "summary": "Receive a borrowed item back", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/items": {
            "get": {"tags": ["items"], "summary": "Requestable catalog with availability", "parameters": [
                {"type": "string", "name": "kind", "in": "query"},
                {"type": "string", "name": "q", "in": "query"}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/items/{id}": {
            "get": {"tags": ["items"], "summary": "Item with its ledger snapshot", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/items/{id}/adjust": {
            "post": {"tags": ["items"], "summary": "Operator stock adjustment", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/items/{id}/bad-stock": {
            "post": {"tags": ["items"], "summary": "Write off damaged supply units", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/notifications": {
            "get": {"tags": ["notifications"], "summary": "Caller inbox, newest first", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/notifications/read-all": {
            "post": {"tags": ["notifications"], "summary": "Mark every notification read", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/notifications/{id}/read": {
            "post": {"tags": ["notifications"], "summary": "Mark one notification read", "parameters": [
                {"type": "string", "name": "id", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}}}
        },
        "/v1/maintenance/sweep": {
            "post": {"tags": ["maintenance"], "summary": "Run one scheduler sweep now", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/maintenance/procedures/{name}": {
            "post": {"tags": ["maintenance"], "summary": "Run a named procedure", "parameters": [
                {"type": "string", "name": "name", "in": "path", "required": true}
            ], "responses": {"200": {"description": "OK"}, "404": {"description": "NOT_FOUND"}}}
        },
        "/v1/maintenance/jobs": {
            "get": {"tags": ["maintenance"], "summary": "Scheduled background jobs", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "SubmitBatchRequest": {
            "type": "object",
            "properties": {
                "kind": {"type": "string", "enum": ["supply", "borrow", "reservation"]},
                "purpose": {"type": "string"},
                "items": {"type": "array", "items": {"$ref": "#/definitions/SubmitLineRequest"}}
            }
        },
        "SubmitLineRequest": {
            "type": "object",
            "properties": {
                "item_id": {"type": "string", "format": "uuid"},
                "quantity": {"type": "integer"},
                "needed_date": {"type": "string", "format": "date"},
                "return_date": {"type": "string", "format": "date"}
            }
        },
        "ApproveItemRequest": {
            "type": "object",
            "properties": {
                "quantity": {"type": "integer"},
                "remarks": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "ResourceHive API",
	Description:      "Supply, borrow and reservation requests over a reservation-aware inventory ledger.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
