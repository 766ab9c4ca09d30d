// Package api holds the wire types shared by the HTTP server and the remote façade.
package api

import (
	"errors"

	"github.com/samber/mo"
)

// Version is the wire contract version reported by the health endpoint.
const Version = "v1.1.0"

// VersionHeader carries Version on every response.
const VersionHeader = "X-Api-Version"

// Response is the envelope of every endpoint.
type Response[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

func OK[T any](data T, message string) Response[T] {
	return Response[T]{Success: true, Data: data, Message: message}
}

// Fail builds a failure envelope. Data is the zero value of T, which encodes as null for
// pointers, slices and maps.
func Fail[T any](message string) Response[T] {
	return Response[T]{Message: message}
}

// Partial is a failure envelope that still carries data, e.g. an order that was placed while
// its stock update failed.
func Partial[T any](data T, message string) Response[T] {
	return Response[T]{Data: data, Message: message}
}

// Result turns the envelope into a mo.Result; a failure becomes an error holding Message.
func (r Response[T]) Result() mo.Result[T] {
	if r.Success {
		return mo.Ok(r.Data)
	}
	msg := r.Message
	if msg == "" {
		msg = "request failed"
	}
	return mo.Err[T](errors.New(msg))
}

type StatusRequest struct {
	Status string `json:"status"`
}

// UploadRequest carries a file as base64.
type UploadRequest struct {
	FileName string `json:"fileName"`
	Data     string `json:"data"`
}

type Upload struct {
	Reference string `json:"reference"`
	FileName  string `json:"fileName"`
}

type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
