// Package swagger serves the static OpenAPI document for the lab course
// tracker API.
package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "LabTrack API",
        "description": "Hardware lab course tracker: year-scoped authorization and progress analysis",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Auth", "description": "Login and session"},
        {"name": "Years", "description": "Year lifecycle"},
        {"name": "Schedule", "description": "Lab days and experiment plan"},
        {"name": "Experiments", "description": "Experiments and tasks"},
        {"name": "Groups", "description": "Groups, memberships and progress records"},
        {"name": "Students", "description": "Student roster"},
        {"name": "Tutors", "description": "Tutor memberships"},
        {"name": "Whitelist", "description": "Login IP whitelist"},
        {"name": "Analysis", "description": "Progress analysis"},
        {"name": "Audit", "description": "Change history"},
        {"name": "Export", "description": "CSV and PDF downloads"},
        {"name": "Push", "description": "Change notifications"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Authenticate and receive a session token",
                "responses": {
                    "200": {"description": "Token issued"},
                    "401": {"description": "Unknown user or bad credentials"},
                    "403": {"description": "Device not whitelisted"}
                }
            }
        },
        "/years": {
            "get": {
                "tags": ["Years"],
                "summary": "List years",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Years"],
                "summary": "Create a year (site admin)",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/years/{year}": {
            "delete": {
                "tags": ["Years"],
                "summary": "Delete a year and everything scoped to it (site admin)",
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/years/{year}/close": {
            "post": {
                "tags": ["Years"],
                "summary": "Close a year for modifications (year admin)",
                "responses": {"204": {"description": "Closed"}}
            }
        },
        "/years/{year}/analysis/eligible": {
            "get": {
                "tags": ["Analysis"],
                "summary": "Students eligible for the certificate",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
