// Пакет errors — запись JSON-ответов в едином конверте shipdesk.
// Успех: {"success": true, "data": ...}; ошибка: {"success": false, "error": "..."}.
// Все ответы API должны проходить через эти функции.
package errors

import (
	"encoding/json"
	"net/http"
)

// Сообщения, общие для нескольких endpoint'ов.
const (
	MsgUnauthorized  = "Unauthorized"
	MsgInternal      = "An error occurred"
	MsgInvalidBody   = "Invalid request body"
	MsgRouteNotFound = "Not found"
)

// envelope — тело любого ответа API.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WriteJSON записывает успешный ответ с данными.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	write(w, statusCode, envelope{Success: true, Data: data})
}

// OK — 200 с данными.
func OK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// Created — 201 с данными.
func Created(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// WriteError записывает ответ ошибки. message передаётся клиенту как есть.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	write(w, statusCode, envelope{Success: false, Error: message})
}

// WriteBody записывает произвольное тело. Используется там, где клиент
// ожидает поля результата на верхнем уровне рядом с success.
func WriteBody(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

func write(w http.ResponseWriter, statusCode int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message)
}

// Unauthorized — 401 без уточнения причины.
func Unauthorized(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, MsgUnauthorized)
}

// Forbidden — 403 недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message)
}

// Conflict — 409 конфликт (дублирующийся ресурс).
func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message)
}

// InternalError — 500 внутренняя ошибка. Детали клиенту не передаются.
func InternalError(w http.ResponseWriter) {
	WriteError(w, http.StatusInternalServerError, MsgInternal)
}
