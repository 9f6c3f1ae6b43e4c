// Package docs registers the OpenAPI document served under /swagger.
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
        "/members/{memberId}/account": {
            "post": {
                "tags": ["Ledger"],
                "summary": "Open member account",
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.OpenAccountRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.MemberAccount"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/members/{memberId}/balances": {
            "get": {
                "tags": ["Ledger"],
                "summary": "Get member balances",
                "parameters": [{"type": "string", "name": "memberId", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/models.MemberAccount"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/members/{memberId}/transactions": {
            "get": {
                "tags": ["Ledger"],
                "summary": "List member transactions",
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/models.Transaction"}}}
                }
            },
            "post": {
                "tags": ["Ledger"],
                "summary": "Record adjustment",
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AdjustmentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/services.ErrorResponse"}}
                }
            }
        },
        "/transactions/{txId}": {
            "put": {
                "tags": ["Ledger"],
                "summary": "Edit adjustment",
                "parameters": [
                    {"type": "integer", "name": "txId", "in": "path", "required": true},
                    {"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.AdjustmentRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}
            },
            "delete": {
                "tags": ["Ledger"],
                "summary": "Delete adjustment",
                "parameters": [{"type": "integer", "name": "txId", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        },
        "/members/{memberId}/reconciliation": {
            "get": {
                "tags": ["Reports"],
                "summary": "Reconcile category",
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"type": "string", "name": "category", "in": "query", "required": true},
                    {"type": "string", "name": "start", "in": "query", "required": true},
                    {"type": "string", "name": "end", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/members/{memberId}/statement": {
            "get": {
                "tags": ["Reports"],
                "summary": "Monthly statement",
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"type": "string", "name": "month", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/members/{memberId}/export": {
            "get": {
                "tags": ["Reports"],
                "summary": "Export statement",
                "produces": ["text/csv", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"],
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"type": "string", "name": "month", "in": "query"},
                    {"type": "array", "items": {"type": "string"}, "collectionFormat": "multi", "name": "category", "in": "query"},
                    {"type": "string", "name": "format", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "file"}}}
            }
        },
        "/members/{memberId}/drift": {
            "get": {
                "tags": ["Maintenance"],
                "summary": "Balance drift",
                "parameters": [{"type": "string", "name": "memberId", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/members/{memberId}/drift/repair": {
            "post": {
                "tags": ["Maintenance"],
                "summary": "Repair balance drift",
                "parameters": [
                    {"type": "string", "name": "memberId", "in": "path", "required": true},
                    {"type": "string", "name": "category", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "services.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "handlers.OpenAccountRequest": {
            "type": "object",
            "properties": {"seeds": {"type": "object", "additionalProperties": {"type": "integer"}}}
        },
        "handlers.AdjustmentRequest": {
            "type": "object",
            "required": ["category", "direction", "magnitude", "transaction_date", "description"],
            "properties": {
                "category": {"type": "string"},
                "direction": {"type": "string", "enum": ["increase", "decrease"]},
                "magnitude": {"type": "integer"},
                "transaction_date": {"type": "string", "example": "2025-01-31"},
                "description": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "models.MemberAccount": {
            "type": "object",
            "properties": {
                "member_id": {"type": "string"},
                "balances": {"type": "object", "additionalProperties": {"type": "integer"}},
                "seeds": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        },
        "models.Transaction": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "member_id": {"type": "string"},
                "category": {"type": "string"},
                "direction": {"type": "string"},
                "magnitude": {"type": "integer"},
                "transaction_date": {"type": "string"},
                "description": {"type": "string"},
                "notes": {"type": "string"},
                "balance_after": {"type": "object", "additionalProperties": {"type": "integer"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{"http", "https"},
	Title:            "Member Credit Ledger API",
	Description:      "Six-category member balance ledger with reconciliation and export",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
