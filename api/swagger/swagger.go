package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Gradebook API",
        "description": "Course enrollment, mark recording and grading engine",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Courses", "description": "Course catalogue"},
        {"name": "Offerings", "description": "Course offerings and assessment plans"},
        {"name": "Enrollments", "description": "Enrollment ledger"},
        {"name": "Marks", "description": "Batch mark posting"},
        {"name": "Grading", "description": "Marksheets, GPA and missing marks"},
        {"name": "GradeScale", "description": "Institution grade scale"},
        {"name": "Reports", "description": "Asynchronous CSV/PDF exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/offerings": {
            "get": {
                "tags": ["Offerings"],
                "summary": "List offerings",
                "parameters": [
                    {"name": "term", "in": "query", "type": "string"},
                    {"name": "year", "in": "query", "type": "integer"},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/admin/offerings/{id}/assessments": {
            "put": {
                "tags": ["Offerings"],
                "summary": "Replace assessment plan",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SetAssessmentsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Weights do not sum to 100"}
                }
            }
        },
        "/student/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List current student's enrollments",
                "parameters": [
                    {"name": "term", "in": "query", "required": true, "type": "string"},
                    {"name": "year", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll into an offering",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already enrolled or over term cap"}
                }
            }
        },
        "/student/enrollments/{id}": {
            "delete": {
                "tags": ["Enrollments"],
                "summary": "Drop an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/student/marksheet": {
            "get": {
                "tags": ["Grading"],
                "summary": "Current student's marksheet",
                "parameters": [
                    {"name": "term", "in": "query", "required": true, "type": "string"},
                    {"name": "year", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lecturer/marks": {
            "post": {
                "tags": ["Marks"],
                "summary": "Post a batch of marks",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PostMarksRequest"}}
                ],
                "responses": {
                    "200": {"description": "Batch committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Batch rejected; no entry committed"}
                }
            }
        },
        "/grade-scale": {
            "get": {
                "tags": ["GradeScale"],
                "summary": "Current grade scale",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an export job",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "offering_id": {"type": "string"},
                "chosen_lecturer_id": {"type": "string"}
            },
            "required": ["offering_id", "chosen_lecturer_id"]
        },
        "SetAssessmentsRequest": {
            "type": "object",
            "properties": {
                "assessments": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/AssessmentInput"}
                }
            },
            "required": ["assessments"]
        },
        "AssessmentInput": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "weight": {"type": "integer"},
                "max_score": {"type": "number"}
            },
            "required": ["name", "weight"]
        },
        "PostMarksRequest": {
            "type": "object",
            "properties": {
                "entries": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/MarkEntry"}
                }
            },
            "required": ["entries"]
        },
        "MarkEntry": {
            "type": "object",
            "properties": {
                "offering_id": {"type": "string"},
                "student_id": {"type": "string"},
                "assessment_id": {"type": "string"},
                "score": {"type": "number"}
            },
            "required": ["offering_id", "student_id", "assessment_id"]
        },
        "ReportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["marksheet", "missing_marks", "gradebook"]},
                "term": {"type": "string"},
                "year": {"type": "integer"},
                "offering_id": {"type": "string"},
                "student_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["type", "term", "year", "format"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
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
                "pagination": {"$ref": "#/definitions/Pagination"},
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
