package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Gradebook API",
        "description": "Grade entry, weighted final grades and ranked class recaps",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Classes", "description": "Homeroom classes per level"},
        {"name": "Students", "description": "Class rosters"},
        {"name": "Subjects", "description": "Subjects per level (SMP or MA)"},
        {"name": "Grades", "description": "Component scores and final grades"},
        {"name": "Recap", "description": "Ranked class recap, statistics and distribution"},
        {"name": "Metrics", "description": "Service instrumentation"}
    ],
    "paths": {
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes",
                "parameters": [
                    {"name": "level", "in": "query", "type": "string", "enum": ["SMP", "MA"]},
                    {"name": "jenjang", "in": "query", "type": "string", "description": "Legacy alias of level"},
                    {"name": "homeroom_teacher_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateClassRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}": {
            "get": {
                "tags": ["Classes"],
                "summary": "Get class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Classes"],
                "summary": "Update class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateClassRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/classes/{id}/students": {
            "get": {
                "tags": ["Students"],
                "summary": "Active students of a class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "post": {
                "tags": ["Students"],
                "summary": "Enrol a student",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateStudentRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}": {
            "put": {
                "tags": ["Students"],
                "summary": "Update or move a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateStudentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student or class not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Students"],
                "summary": "Remove a student from the class roster",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Subjects"],
                "summary": "List subjects",
                "parameters": [
                    {"name": "level", "in": "query", "type": "string", "enum": ["SMP", "MA"]},
                    {"name": "jenjang", "in": "query", "type": "string", "description": "Legacy alias of level"},
                    {"name": "search", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown level", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Subjects"],
                "summary": "Create subject",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateSubjectRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/subjects/{id}": {
            "get": {
                "tags": ["Subjects"],
                "summary": "Get subject",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Subjects"],
                "summary": "Update subject",
                "description": "Moving a subject to another level is rejected with 409 once grades exist.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateSubjectRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Subject has grades", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Subjects"],
                "summary": "Delete subject",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Subject has grades", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "List grade entries",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "subject_id", "in": "query", "type": "string"},
                    {"name": "student_id", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1", "2"]},
                    {"name": "academic_year", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer", "default": 1},
                    {"name": "page_size", "in": "query", "type": "integer", "default": 20, "maximum": 100},
                    {"name": "limit", "in": "query", "type": "integer", "description": "Alias of page_size"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Grades"],
                "summary": "Save the scores of one student in one subject",
                "description": "Replaces every component score; omitted components are cleared. The final grade is computed once all six components are present.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpsertGradeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or score out of range", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student or subject not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/bulk": {
            "put": {
                "tags": ["Grades"],
                "summary": "Bulk save grades",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkGradesRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "207": {"description": "Some entries failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/sheet": {
            "get": {
                "tags": ["Grades"],
                "summary": "Grade sheet of one subject in a class",
                "parameters": [
                    {"name": "class_id", "in": "query", "required": true, "type": "string"},
                    {"name": "subject_id", "in": "query", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1", "2"]},
                    {"name": "academic_year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/grades/recalculate": {
            "post": {
                "tags": ["Grades"],
                "summary": "Recalculate the stored final grades of a class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RecalculateRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recap": {
            "get": {
                "tags": ["Recap"],
                "summary": "Ranked recap of the class of a homeroom teacher",
                "parameters": [
                    {"name": "class_id", "in": "query", "type": "string"},
                    {"name": "homeroom_teacher_id", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1", "2"]},
                    {"name": "academic_year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recap/{classId}": {
            "get": {
                "tags": ["Recap"],
                "summary": "Ranked recap of a class",
                "description": "Averages every student's final grades, ranks the class and reports statistics and the grade distribution. The X-Cache header reports HIT or MISS.",
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1", "2"]},
                    {"name": "academic_year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Class not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/recap/{classId}/export": {
            "get": {
                "tags": ["Recap"],
                "summary": "Download the class recap as PDF",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "classId", "in": "path", "required": true, "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1", "2"]},
                    {"name": "academic_year", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF document", "schema": {"type": "file"}}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Grading dashboard",
                "description": "Record totals, grading completion per class and the distribution of final grades for one term. The X-Cache header reports HIT or MISS.",
                "parameters": [
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1", "2"]},
                    {"name": "academic_year", "in": "query", "type": "string"},
                    {"name": "homeroom_teacher_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Metrics"],
                "summary": "JSON metrics snapshot",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Scores": {
            "type": "object",
            "properties": {
                "assignment1": {"type": "number", "minimum": 0, "maximum": 100},
                "assignment2": {"type": "number", "minimum": 0, "maximum": 100},
                "quiz1": {"type": "number", "minimum": 0, "maximum": 100},
                "quiz2": {"type": "number", "minimum": 0, "maximum": 100},
                "midterm": {"type": "number", "minimum": 0, "maximum": 100},
                "final_exam": {"type": "number", "minimum": 0, "maximum": 100}
            }
        },
        "UpsertGradeRequest": {
            "type": "object",
            "required": ["student_id", "subject_id"],
            "allOf": [{"$ref": "#/definitions/Scores"}],
            "properties": {
                "student_id": {"type": "string"},
                "subject_id": {"type": "string"},
                "semester": {"type": "string", "enum": ["1", "2"]},
                "academic_year": {"type": "string", "example": "2024/2025"}
            }
        },
        "BulkGradesRequest": {
            "type": "object",
            "required": ["grades"],
            "properties": {
                "mode": {"type": "string", "enum": ["atomic", "partialOnError"]},
                "grades": {"type": "array", "items": {"$ref": "#/definitions/UpsertGradeRequest"}}
            }
        },
        "RecalculateRequest": {
            "type": "object",
            "required": ["class_id"],
            "properties": {
                "class_id": {"type": "string"},
                "semester": {"type": "string", "enum": ["1", "2"]},
                "academic_year": {"type": "string"}
            }
        },
        "CreateClassRequest": {
            "type": "object",
            "required": ["name", "level", "grade_level"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "level": {"type": "string", "enum": ["SMP", "MA"]},
                "grade_level": {"type": "integer", "minimum": 7, "maximum": 12},
                "homeroom_teacher_id": {"type": "string"}
            }
        },
        "CreateSubjectRequest": {
            "type": "object",
            "required": ["code", "name", "level"],
            "properties": {
                "id": {"type": "string"},
                "code": {"type": "string"},
                "name": {"type": "string"},
                "level": {"type": "string", "enum": ["SMP", "MA"]}
            }
        },
        "CreateStudentRequest": {
            "type": "object",
            "required": ["nis", "full_name", "class_id"],
            "properties": {
                "id": {"type": "string"},
                "nis": {"type": "string"},
                "full_name": {"type": "string"},
                "class_id": {"type": "string"}
            }
        },
        "UpdateClassRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "level": {"type": "string", "enum": ["SMP", "MA"]},
                "grade_level": {"type": "integer", "minimum": 7, "maximum": 12},
                "homeroom_teacher_id": {"type": "string"}
            }
        },
        "UpdateSubjectRequest": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "name": {"type": "string"},
                "level": {"type": "string", "enum": ["SMP", "MA"]}
            }
        },
        "UpdateStudentRequest": {
            "type": "object",
            "properties": {
                "nis": {"type": "string"},
                "full_name": {"type": "string"},
                "class_id": {"type": "string"}
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
