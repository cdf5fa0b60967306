package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/shwanortho/site/internal/db"
	"github.com/shwanortho/site/internal/locale"
)

// ShowLoginPage 渲染登录页面
func (a *API) ShowLoginPage(c *gin.Context) {
	a.renderHTML(c, http.StatusOK, "admin/login.html", gin.H{
		"title": "Admin Login",
	})
}

// Login 校验表单中的用户名与密码并建立会话
func (a *API) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := db.Authenticate(a.db, username, password)
	if err != nil {
		status := http.StatusUnauthorized
		if !errors.Is(err, db.ErrInvalidCredentials) {
			status = http.StatusInternalServerError
			a.log.Error().Err(err).Msg("authenticate admin")
		}
		a.renderHTML(c, status, "admin/login.html", gin.H{
			"title": "Admin Login",
			"error": "Invalid username or password",
		})
		return
	}

	// 设置会话
	session := sessions.Default(c)
	session.Set("user_id", user.ID)
	session.Set("username", user.Username)
	if err := session.Save(); err != nil {
		a.renderHTML(c, http.StatusInternalServerError, "admin/login.html", gin.H{
			"title": "Admin Login",
			"error": "Could not save session",
		})
		return
	}

	c.Redirect(http.StatusFound, "/admin")
}

// Logout 处理用户登出
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/admin/login")
}

// ShowEditor 渲染内容编辑器外壳，数据由前端通过 /admin/api 加载
func (a *API) ShowEditor(c *gin.Context) {
	session := sessions.Default(c)
	online := a.content.Online(c.Request.Context()) == nil

	a.renderHTML(c, http.StatusOK, "admin/editor.html", gin.H{
		"title":    "Content Editor",
		"username": session.Get("username"),
		"locales":  locale.Supported,
		"online":   online,
		"driver":   a.driver,
	})
}

// AuthRequired 是一个简单的认证中间件，API 请求返回 401，页面请求跳转登录页
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		if session.Get("user_id") == nil {
			if strings.HasPrefix(c.Request.URL.Path, "/admin/api/") {
				respondError(c, http.StatusUnauthorized, "Authentication required")
				c.Abort()
				return
			}
			c.Redirect(http.StatusFound, "/admin/login")
			c.Abort()
			return
		}
		c.Next()
	}
}
