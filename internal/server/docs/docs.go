// Package docs registers the OpenAPI document served at /swagger/doc.json.
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
        "/api/builds/{id}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get a recorded build",
                "parameters": [
                    {"type": "string", "description": "Build ID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.buildResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.errorResponse"}}
                }
            }
        },
        "/api/convert": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "summary": "Convert a web application into an APK",
                "parameters": [
                    {"type": "file", "description": "Site archive (zip) or a single index.html", "name": "webFiles", "in": "formData", "required": true},
                    {"type": "file", "description": "App icon", "name": "appIcon", "in": "formData"},
                    {"type": "file", "description": "Splash screen", "name": "splashScreen", "in": "formData"},
                    {"type": "string", "description": "App name", "name": "appName", "in": "formData", "required": true},
                    {"type": "string", "description": "Package name, e.g. com.example.app", "name": "packageName", "in": "formData", "required": true},
                    {"type": "string", "default": "1.0.0", "description": "Version name", "name": "versionName", "in": "formData"},
                    {"type": "integer", "default": 1, "description": "Version code", "name": "versionCode", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.convertResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.errorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/server.errorResponse"}}
                }
            }
        },
        "/downloads/{fileName}": {
            "get": {
                "produces": ["application/vnd.android.package-archive"],
                "summary": "Download a built APK",
                "parameters": [
                    {"type": "string", "description": "Artifact name", "name": "fileName", "in": "path", "required": true},
                    {"type": "string", "description": "Download token", "name": "token", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.errorResponse"}}
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "summary": "Report that the server is up",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.healthResponse"}}
                }
            }
        }
    },
    "definitions": {
        "server.buildResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "createdAt": {"type": "string"},
                "updatedAt": {"type": "string"},
                "appName": {"type": "string"},
                "packageName": {"type": "string"},
                "versionName": {"type": "string"},
                "versionCode": {"type": "integer"},
                "state": {"type": "string"},
                "done": {"type": "boolean"},
                "errorKind": {"type": "string"},
                "errorMessage": {"type": "string"},
                "downloadUrl": {"type": "string"},
                "buildLog": {"type": "string"}
            }
        },
        "server.convertResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "downloadUrl": {"type": "string"},
                "buildLog": {"type": "string"}
            }
        },
        "server.errorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "buildLog": {"type": "string"}
            }
        },
        "server.healthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "web2app API",
	Description:      "Converts web applications into Android APKs.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
