package middleware

import "github.com/gin-gonic/gin"

// AccessGuard gates tenant-scoped routes. It runs after Tenant.
type AccessGuard gin.HandlerFunc
