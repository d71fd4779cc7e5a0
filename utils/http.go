package utils

import (
	"github.com/valyala/fasthttp"
)

type envelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func WriteJSON(ctx *fasthttp.RequestCtx, statusCode int, payload interface{}) {
	body, err := Marshal(payload)
	if err != nil {
		CreateErrorResponse(ctx)
		return
	}

	ctx.SetStatusCode(statusCode)
	ctx.SetContentType("application/json")
	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.SetBody(body)
}

func WriteSuccess(ctx *fasthttp.RequestCtx, data interface{}) {
	WriteJSON(ctx, fasthttp.StatusOK, envelope{Status: "success", Data: data})
}

func WriteMessage(ctx *fasthttp.RequestCtx, statusCode int, status, message string) {
	WriteJSON(ctx, statusCode, envelope{Status: status, Message: message})
}

func CreateErrorResponse(ctx *fasthttp.RequestCtx) {
	ctx.SetStatusCode(fasthttp.StatusInternalServerError)
	ctx.SetContentType("application/json")

	ctx.Response.Header.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	ctx.Response.Header.Set("Pragma", "no-cache")
	ctx.Response.Header.Set("Expires", "0")

	if requestID := string(ctx.Request.Header.Peek("X-Request-ID")); requestID != "" {
		ctx.Response.Header.Set("X-Request-ID", requestID)
	}

	ctx.SetBodyString(`{"status":"error","message":"An unexpected error occurred"}`)
}
