// Package docs registers the OpenAPI document served under /swagger.
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
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/health": {"get": {"tags": ["system"], "summary": "Health check", "responses": {"200": {"description": "OK"}}}},
        "/auth/sign-up": {"post": {"tags": ["auth"], "summary": "Sign up",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}],
            "responses": {"200": {"description": "user id"}, "400": {"description": "bad request"}}}},
        "/auth/sign-in": {"post": {"tags": ["auth"], "summary": "Sign in",
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/credentials"}}],
            "responses": {"200": {"description": "bearer token"}, "401": {"description": "invalid credentials"}}}},
        "/api/v1/fits": {
            "post": {"tags": ["fits"], "summary": "Fit a series", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/FitBody"}}],
                "responses": {"201": {"description": "stored run", "schema": {"$ref": "#/definitions/FitRun"}},
                    "400": {"description": "invalid input"}, "422": {"description": "degenerate data"}}},
            "get": {"tags": ["fits"], "summary": "List fits", "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "series_id", "type": "string"}, {"in": "query", "name": "limit", "type": "integer"}],
                "responses": {"200": {"description": "count, fits"}}}
        },
        "/api/v1/fits/batch": {"post": {"tags": ["fits"], "summary": "Fit several series", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object",
                "properties": {"series": {"type": "array", "items": {"$ref": "#/definitions/FitBody"}}}}}],
            "responses": {"200": {"description": "count, items"}}}},
        "/api/v1/fits/{id}": {"get": {"tags": ["fits"], "summary": "Get a fit", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
            "responses": {"200": {"description": "run", "schema": {"$ref": "#/definitions/FitRun"}}, "404": {"description": "not found"}}}},
        "/api/v1/fits/{id}/series": {"get": {"tags": ["fits"], "summary": "Archived series of a fit", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "path", "name": "id", "required": true, "type": "string"}],
            "responses": {"200": {"description": "count, points"}, "404": {"description": "not found"}}}},
        "/api/v1/predict": {"post": {"tags": ["model"], "summary": "Predict outdoor temperature", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}],
            "responses": {"200": {"description": "t_out"}}}},
        "/api/v1/simulate": {"post": {"tags": ["model"], "summary": "Simulate indoor temperature", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"type": "object"}}],
            "responses": {"200": {"description": "t_in"}}}},
        "/api/v1/logs": {"get": {"tags": ["logs"], "summary": "List events", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "query", "name": "from", "type": "string"}, {"in": "query", "name": "to", "type": "string"},
                {"in": "query", "name": "type", "type": "string", "enum": ["FIT_COMPLETED", "FIT_WARNING", "FIT_FAILED", "BATCH_COMPLETED"]}],
            "responses": {"200": {"description": "count, events"}}}},
        "/ws": {"get": {"tags": ["events"], "summary": "Event stream (websocket)", "security": [{"BearerAuth": []}],
            "parameters": [{"in": "query", "name": "access_token", "type": "string"}, {"in": "query", "name": "since", "type": "string"}],
            "responses": {"101": {"description": "switching protocols"}, "401": {"description": "missing or invalid token"}}}}
    },
    "definitions": {
        "credentials": {"type": "object", "required": ["username", "password"],
            "properties": {"username": {"type": "string"}, "password": {"type": "string"}}},
        "FitBody": {"type": "object", "required": ["series_id", "t_in", "t_out", "q_in"],
            "properties": {
                "series_id": {"type": "string"},
                "t_in": {"type": "array", "items": {"type": "number"}},
                "t_out": {"type": "array", "items": {"type": "number"}},
                "q_in": {"type": "array", "items": {"type": "number"}},
                "dt": {"type": "number"},
                "timestamps": {"type": "array", "items": {"type": "string", "format": "date-time"}},
                "time_unit": {"type": "string", "enum": ["second", "minute", "hour", "day"]},
                "method": {"type": "string", "enum": ["linear", "nonlinear"]},
                "holdout_fraction": {"type": "number"},
                "holdout_index": {"type": "integer"}
            }},
        "Estimate": {"type": "object",
            "properties": {"value": {"type": "number"}, "std_err": {"type": "number"}, "ci_low": {"type": "number"}, "ci_high": {"type": "number"}}},
        "FitRun": {"type": "object",
            "properties": {
                "id": {"type": "string"},
                "series_id": {"type": "string"},
                "method": {"type": "string"},
                "r_env": {"$ref": "#/definitions/Estimate"},
                "c_in": {"$ref": "#/definitions/Estimate"},
                "converged": {"type": "boolean"},
                "at_bound": {"type": "boolean"},
                "warnings": {"type": "array", "items": {"type": "string"}},
                "created_at": {"type": "string", "format": "date-time"}
            }}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Thermal Envelope API",
	Description:      "Estimates envelope resistance and indoor heat capacity from building time series.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
