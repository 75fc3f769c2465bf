package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Management API",
        "description": "Records, fees, timetables, notices and messaging for a single school.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Auth", "description": "Login, accounts and password reset"},
        {"name": "People", "description": "Students, teachers and non-teaching staff"},
        {"name": "Fees", "description": "Individual and class-wide fees"},
        {"name": "Timetables", "description": "Weekly class timetable"},
        {"name": "Grades", "description": "Exam mark entry and report cards"},
        {"name": "ClassEvents", "description": "Tests, trips and other events posted for a class"},
        {"name": "Streams", "description": "Live list screens over server-sent events"},
        {"name": "Reports", "description": "Dashboard and downloadable exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Auth"],
                "summary": "Login",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/password-reset": {
            "post": {
                "tags": ["Auth"],
                "summary": "Request a password reset mail",
                "security": [],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResetPasswordRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted"}
                }
            }
        },
        "/students": {
            "get": {
                "tags": ["People"],
                "summary": "List students",
                "description": "Search matches name and email case-insensitively. class filters exactly; All Classes matches everyone.",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "class", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["People"],
                "summary": "Create student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PersonInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "get": {
                "tags": ["People"],
                "summary": "Get student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["People"],
                "summary": "Update student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PersonInput"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["People"],
                "summary": "Delete student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/students/stream": {
            "get": {
                "tags": ["Streams"],
                "summary": "Live student list",
                "description": "Emits an open event carrying stream_id, then a view event on every change. EventSource clients may pass access_token as a query parameter.",
                "produces": ["text/event-stream"],
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "class", "in": "query", "type": "string"},
                    {"name": "access_token", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Event stream"}
                }
            }
        },
        "/streams/{streamId}/items/{id}": {
            "delete": {
                "tags": ["Streams"],
                "summary": "Delete through a live list",
                "description": "Hides the item at once and waits for the store. On failure the item comes back and the error is returned.",
                "parameters": [
                    {"name": "streamId", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Stream owned by another session"},
                    "404": {"description": "Unknown stream or item"}
                }
            }
        },
        "/fees": {
            "get": {
                "tags": ["Fees"],
                "summary": "List fees",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["Pending", "Paid", "All"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Fees"],
                "summary": "Create fee",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/FeeInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/mine": {
            "get": {
                "tags": ["Fees"],
                "summary": "Fees of the signed-in student",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/fees/{id}/paid": {
            "post": {
                "tags": ["Fees"],
                "summary": "Mark fee paid",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetables": {
            "post": {
                "tags": ["Timetables"],
                "summary": "Create timetable slot",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TimetableInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Class already booked for that slot", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/sheet": {
            "get": {
                "tags": ["Grades"],
                "summary": "Grade sheet of a class",
                "description": "One row per student of the class sorted by roll number. Rank is by percentage; equal percentages share a rank.",
                "parameters": [
                    {"name": "class", "in": "query", "required": true, "type": "string"},
                    {"name": "exam_type", "in": "query", "required": true, "type": "string", "enum": ["FA1", "FA2", "FA3", "FA4", "SA1", "SA2"]},
                    {"name": "academic_year", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Save marks for a class",
                "description": "Every row is checked before anything is written. Blank marks are skipped.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GradeSheetInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/mine": {
            "get": {
                "tags": ["Grades"],
                "summary": "Report card of the signed-in student",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-events": {
            "get": {
                "tags": ["ClassEvents"],
                "summary": "Active events of a class",
                "description": "Newest first. Students always get their own class.",
                "parameters": [
                    {"name": "class", "in": "query", "type": "string"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["ClassEvents"],
                "summary": "Post a class event",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClassEventInput"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/class-events/{id}": {
            "delete": {
                "tags": ["ClassEvents"],
                "summary": "Delete a class event",
                "description": "Only the author or an admin may delete an event.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "403": {"description": "Not the author", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Reports"],
                "summary": "Admin dashboard counts",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Render a report",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a rendered report",
                "security": [],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid or expired link"},
                    "404": {"description": "File removed"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "format": "email"},
                "password": {"type": "string"}
            }
        },
        "ResetPasswordRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string", "format": "email"}
            }
        },
        "PersonInput": {
            "type": "object",
            "required": ["first_name", "last_name", "email"],
            "properties": {
                "first_name": {"type": "string"},
                "last_name": {"type": "string"},
                "email": {"type": "string", "format": "email"},
                "phone": {"type": "string"},
                "mobile_no": {"type": "string"},
                "class_name": {"type": "string"},
                "roll_number": {"type": "string"},
                "gender": {"type": "string"},
                "date_of_birth": {"type": "string", "format": "date"},
                "address": {"type": "string"},
                "age": {"type": "string"},
                "department": {"type": "string"}
            }
        },
        "FeeInput": {
            "type": "object",
            "required": ["student_name", "amount", "due_date", "target_kind"],
            "properties": {
                "student_name": {"type": "string"},
                "amount": {"type": "string"},
                "due_date": {"type": "string", "format": "date"},
                "description": {"type": "string"},
                "target_kind": {"type": "string", "enum": ["individual", "class"]},
                "student_id": {"type": "string"},
                "class_name": {"type": "string"},
                "status": {"type": "string", "enum": ["Pending", "Paid"]}
            }
        },
        "TimetableInput": {
            "type": "object",
            "required": ["class_grade", "day_of_week", "time_slot", "subject", "teacher"],
            "properties": {
                "class_grade": {"type": "string"},
                "day_of_week": {"type": "string"},
                "time_slot": {"type": "string"},
                "subject": {"type": "string"},
                "teacher": {"type": "string"},
                "room_number": {"type": "string"},
                "is_active": {"type": "boolean"}
            }
        },
        "GradeSheetInput": {
            "type": "object",
            "required": ["class_name", "exam_type", "academic_year", "entries"],
            "properties": {
                "class_name": {"type": "string"},
                "exam_type": {"type": "string", "enum": ["FA1", "FA2", "FA3", "FA4", "SA1", "SA2"]},
                "academic_year": {"type": "string"},
                "exam_date": {"type": "string", "format": "date"},
                "entries": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "student_id": {"type": "string"},
                            "marks": {"type": "object", "additionalProperties": {"type": "string"}}
                        }
                    }
                }
            }
        },
        "ClassEventInput": {
            "type": "object",
            "required": ["title", "event_date", "target_class"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "event_date": {"type": "string", "format": "date-time"},
                "target_class": {"type": "string"},
                "priority": {"type": "string", "enum": ["normal", "important", "urgent"]},
                "type": {"type": "string", "enum": ["general", "exam", "activity", "holiday"]},
                "status": {"type": "string", "enum": ["active", "cancelled", "completed"]},
                "attachments": {"type": "array", "items": {"type": "string", "format": "uri"}}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["kind", "format"],
            "properties": {
                "kind": {"type": "string", "enum": ["fees", "timetable", "attendance"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "class_name": {"type": "string"},
                "status": {"type": "string", "enum": ["Pending", "Paid"]},
                "date": {"type": "string", "format": "date"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}}
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
