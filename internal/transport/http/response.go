package httptransport

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一响应结构
type Response struct {
	Code int         `json:"code"`           // 业务状态码
	Msg  string      `json:"msg"`            // 中文提示信息
	Data interface{} `json:"data,omitempty"` // 数据载荷
}

// Success 成功响应（200）
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Msg: "成功", Data: data})
}

// Created 创建成功响应（201）
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Code: http.StatusCreated, Msg: "创建成功", Data: data})
}

// Deleted 删除成功
func Deleted(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Code: http.StatusOK, Msg: "删除成功"})
}

// Error 错误响应
func Error(c *gin.Context, httpCode int, msg string) {
	c.JSON(httpCode, Response{Code: httpCode, Msg: msg})
}

// ErrorWithData 带数据的错误响应（校验失败明细、被拒绝的发送结果等）
func ErrorWithData(c *gin.Context, httpCode int, msg string, data interface{}) {
	c.JSON(httpCode, Response{Code: httpCode, Msg: msg, Data: data})
}

// BadRequest 请求参数错误（400）
func BadRequest(c *gin.Context) {
	Error(c, http.StatusBadRequest, MsgInvalidRequest)
}
