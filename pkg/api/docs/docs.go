// Package docs holds the OpenAPI document for the config API and registers
// it with swag so http-swagger can serve it under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/configs": {
            "get": {
                "description": "Returns configs newest first, filtered and paginated.",
                "produces": ["application/json"],
                "tags": ["Configs"],
                "summary": "List configs",
                "parameters": [
                    {"type": "string", "description": "Exact genre", "name": "genre", "in": "query"},
                    {"type": "string", "description": "Case-insensitive name substring", "name": "name", "in": "query"},
                    {"type": "string", "description": "Comma-separated tags, all required", "name": "tags", "in": "query"},
                    {"type": "integer", "description": "Page number (default 1)", "name": "page", "in": "query"},
                    {"type": "integer", "description": "Page size (default 10, max 100)", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.configListResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "post": {
                "description": "Stores a new config and records it as version 1.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Configs"],
                "summary": "Create config",
                "parameters": [
                    {"description": "Config", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/configstore.Config"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/configstore.Config"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/configs/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Configs"],
                "summary": "Get config",
                "parameters": [
                    {"type": "string", "description": "Config ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/configstore.Config"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "put": {
                "description": "Replaces an unlocked config and records the next version.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Configs"],
                "summary": "Update config",
                "parameters": [
                    {"type": "string", "description": "Config ID", "name": "id", "in": "path", "required": true},
                    {"description": "Config", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/configstore.Config"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/configstore.Config"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "423": {"description": "Locked", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            },
            "delete": {
                "description": "Removes a config and its whole version history.",
                "tags": ["Configs"],
                "summary": "Delete config",
                "parameters": [
                    {"type": "string", "description": "Config ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/configs/{id}/clone": {
            "post": {
                "description": "Copies a config into a new unlocked config with its own history.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Configs"],
                "summary": "Clone config",
                "parameters": [
                    {"type": "string", "description": "Source config ID", "name": "id", "in": "path", "required": true},
                    {"description": "Clone name", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.cloneRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/configstore.Config"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/configs/{id}/publish": {
            "post": {
                "description": "Locks a config. Locked configs reject update and rollback.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Versions"],
                "summary": "Publish config",
                "parameters": [
                    {"type": "string", "description": "Config ID", "name": "id", "in": "path", "required": true},
                    {"description": "Actor", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/api.actorRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/configstore.Config"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/configs/{id}/rollback": {
            "post": {
                "description": "Restores a snapshot and records it as a new version.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Versions"],
                "summary": "Roll back config",
                "parameters": [
                    {"type": "string", "description": "Config ID", "name": "id", "in": "path", "required": true},
                    {"description": "Target version", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/api.rollbackRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/configstore.Config"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}},
                    "423": {"description": "Locked", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        },
        "/configs/{id}/versions": {
            "get": {
                "description": "Returns every snapshot of a config, newest first.",
                "produces": ["application/json"],
                "tags": ["Versions"],
                "summary": "Version history",
                "parameters": [
                    {"type": "string", "description": "Config ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/configstore.VersionSnapshot"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.errorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "api.actorRequest": {
            "type": "object",
            "properties": {"actor": {"type": "string"}}
        },
        "api.cloneRequest": {
            "type": "object",
            "properties": {"actor": {"type": "string"}, "name": {"type": "string"}}
        },
        "api.configListResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/configstore.Config"}},
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total": {"type": "integer"}
            }
        },
        "api.errorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}}
        },
        "api.rollbackRequest": {
            "type": "object",
            "properties": {"actor": {"type": "string"}, "version": {"type": "integer"}}
        },
        "configstore.Config": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "version": {"type": "string"},
                "created_at": {"type": "string"},
                "last_modified": {"type": "string"},
                "created_by": {"type": "string"},
                "checksum": {"type": "string"},
                "is_locked": {"type": "boolean"},
                "genre": {"type": "string"},
                "camera": {"type": "string"},
                "tone": {"type": "string"},
                "world_scale": {"type": "string"},
                "target_platforms": {"type": "array", "items": {"type": "string"}},
                "physics_profile": {"type": "string"},
                "max_players": {"type": "integer"},
                "is_competitive": {"type": "boolean"},
                "supports_coop": {"type": "boolean"},
                "difficulty": {"type": "string"},
                "monetization": {"type": "string"},
                "target_audience": {"type": "string"},
                "esrb_rating": {"type": "string"},
                "target_fps": {"type": "integer"},
                "max_draw_distance": {"type": "number"},
                "max_entities": {"type": "integer"},
                "max_npc_count": {"type": "integer"},
                "time_scale": {"type": "number"},
                "weather_enabled": {"type": "boolean"},
                "seasons_enabled": {"type": "boolean"},
                "day_night_cycle": {"type": "boolean"},
                "persistent_world": {"type": "boolean"},
                "npc_count": {"type": "integer"},
                "ai_enabled": {"type": "boolean"},
                "ai_difficulty_scaling": {"type": "string"},
                "has_campaign": {"type": "boolean"},
                "has_side_quests": {"type": "boolean"},
                "dynamic_quests": {"type": "boolean"},
                "tags": {"type": "array", "items": {"type": "string"}},
                "custom_properties": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "configstore.VersionSnapshot": {
            "type": "object",
            "properties": {
                "config_id": {"type": "string"},
                "version_number": {"type": "integer"},
                "data": {"$ref": "#/definitions/configstore.Config"},
                "checksum": {"type": "string"},
                "created_at": {"type": "string"},
                "created_by": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "gamedna config API",
	Description:      "Versioned storage for game configurations.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
