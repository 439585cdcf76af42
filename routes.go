package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	"ordersite/internal/cache"
	"ordersite/internal/calendar"
	"ordersite/internal/cart"
	"ordersite/internal/config"
	"ordersite/internal/handlers"
	"ordersite/internal/mail"
	"ordersite/internal/middleware"
	"ordersite/internal/ordering"
	"ordersite/internal/postal"
	"ordersite/internal/reports"
	"ordersite/internal/repository"
	"ordersite/internal/storage"
)

type application struct {
	cfg       config.Config
	client    *mongo.Client
	store     *repository.Store
	settings  *cache.Settings
	images    *storage.Store
	mailer    *mail.Notifier
	postal    *postal.Client
	calendar  *calendar.Calendar
	checkout  *ordering.Checkout
	lifecycle *ordering.Lifecycle
	reports   *reports.Service
	sessions  *cart.SessionStore
	limiter   *middleware.IPRateLimiter
}

func (a *application) routes(r *gin.Engine) {
	s := a.store
	secret := a.cfg.JWTSecret
	tokens := handlers.TokenConfig{
		Secret:     secret,
		AccessTTL:  a.cfg.AccessTokenTTL,
		RefreshTTL: a.cfg.RefreshTokenTTL,
	}
	auth := handlers.AuthStores{Users: s.Users, Tokens: s.RefreshTokens}
	catalog := handlers.CatalogStores{Products: s.Products, Categories: s.Categories}
	needDB := handlers.RequireDatabase(a.client)
	maintenance := middleware.Maintenance(a.settings)

	r.GET("/health", handlers.Health())
	r.GET("/ready", handlers.Ready(a.client))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/auth")
	{
		authGroup.POST("/register", a.limiter.Middleware(), needDB, handlers.Register(auth, tokens))
		authGroup.POST("/login", a.limiter.Middleware(), handlers.Login(auth, tokens))
		authGroup.POST("/refresh", handlers.Refresh(auth, tokens))
		authGroup.POST("/logout", handlers.Logout(s.RefreshTokens))
		authGroup.GET("/me", middleware.UserAuth(secret), handlers.Me(s.Users))
	}
	r.POST("/admin/login", a.limiter.Middleware(), handlers.AdminLogin(auth, tokens))

	api := r.Group("/api")
	{
		api.GET("/site", handlers.GetPublicSettings(a.settings))
		api.GET("/announcements", handlers.GetAnnouncements(s.Announcements))
		api.GET("/calendar", handlers.GetDeliveryCalendar(a.calendar, time.Now))
		api.GET("/postal/:code", handlers.LookupPostalCode(a.postal))
		api.POST("/contact", a.limiter.Middleware(), handlers.SubmitContact(a.mailer))
		api.POST("/send-email", middleware.AdminAuth(secret), a.limiter.Middleware(), handlers.SendEmail(a.mailer))
	}

	shop := api.Group("", maintenance)
	{
		shop.GET("/products", handlers.GetProducts(s.Products))
		shop.GET("/products/:id", handlers.GetProduct(catalog))
		shop.GET("/categories", handlers.GetCategories(s.Categories))

		shop.GET("/cart", handlers.GetCart(a.sessions))
		shop.POST("/cart/items", handlers.AddCartItem(a.sessions, s.Products))
		shop.PATCH("/cart/items/:productId", handlers.UpdateCartItem(a.sessions))
		shop.DELETE("/cart/items/:productId", handlers.RemoveCartItem(a.sessions))
		shop.DELETE("/cart", handlers.ClearCart(a.sessions))
	}

	checkout := shop.Group("/checkout", middleware.UserAuth(secret))
	{
		checkout.POST("/review", handlers.ReviewCheckout(a.checkout, a.sessions))
		checkout.POST("", needDB, handlers.SubmitCheckout(a.checkout, a.sessions))
	}

	account := api.Group("/account", middleware.UserAuth(secret))
	{
		account.GET("/profile", handlers.GetProfile(s.Users))
		account.PUT("/profile", needDB, handlers.UpdateProfile(s.Users))

		account.GET("/addresses", handlers.GetUserAddresses(s.Addresses))
		account.POST("/addresses", needDB, handlers.CreateUserAddress(s.Addresses))
		account.PUT("/addresses/:id", needDB, handlers.UpdateUserAddress(s.Addresses))
		account.DELETE("/addresses/:id", needDB, handlers.DeleteUserAddress(s.Addresses))
		account.POST("/addresses/:id/default", needDB, handlers.SetDefaultUserAddress(s.Addresses))

		account.GET("/orders", handlers.GetMyOrders(s.Orders))
		account.GET("/orders/:id", handlers.GetMyOrder(s.Orders))
		account.POST("/orders/:id/cancel", needDB, handlers.CancelMyOrder(a.lifecycle))
	}

	admin := r.Group("/admin/api", middleware.AdminAuth(secret))
	{
		admin.GET("/me", handlers.Me(s.Users))

		admin.GET("/products", handlers.GetAllProducts(s.Products))
		admin.GET("/products/:id", handlers.GetAdminProduct(s.Products))
		admin.POST("/products", needDB, handlers.CreateProduct(catalog, a.images))
		admin.PUT("/products/:id", needDB, handlers.UpdateProduct(catalog, a.images))
		admin.DELETE("/products/:id", needDB, handlers.DeleteProduct(s.Products, a.images))
		admin.POST("/uploads", handlers.UploadImage(a.images))

		admin.GET("/categories", handlers.GetAllCategories(catalog))
		admin.POST("/categories", needDB, handlers.CreateCategory(s.Categories))
		admin.PUT("/categories/:id", needDB, handlers.UpdateCategory(s.Categories))
		admin.DELETE("/categories/:id", needDB, handlers.DeleteCategory(catalog))

		orders := handlers.OrderStores{Orders: s.Orders, Users: s.Users}
		admin.GET("/orders", handlers.GetAllOrders(orders))
		admin.GET("/orders/:id", handlers.GetAdminOrder(orders))
		admin.PUT("/orders/:id/status", needDB, handlers.UpdateOrderStatus(a.lifecycle))
		admin.POST("/orders/:id/cancel", needDB, handlers.AdminCancelOrder(a.lifecycle))
		admin.POST("/orders/:id/restore", needDB, handlers.RestoreOrder(a.lifecycle))
		admin.DELETE("/orders/:id", needDB, handlers.DeleteOrder(s.Orders))

		admin.GET("/users", handlers.GetAllUsers(s.Users))
		admin.GET("/users/:id", handlers.GetAdminUser(s.Users))
		admin.PUT("/users/:id", needDB, handlers.UpdateAdminUser(s.Users))
		admin.PUT("/users/:id/role", needDB, handlers.UpdateUserRole(s.Users))

		admin.GET("/announcements", handlers.GetAllAnnouncements(s.Announcements))
		admin.POST("/announcements", needDB, handlers.CreateAnnouncement(s.Announcements))
		admin.PUT("/announcements/:id", needDB, handlers.UpdateAnnouncement(s.Announcements))
		admin.DELETE("/announcements/:id", needDB, handlers.DeleteAnnouncement(s.Announcements))

		admin.GET("/settings", handlers.GetSettings(a.settings))
		admin.PUT("/settings", needDB, handlers.UpdateSettings(a.settings))

		admin.GET("/notifications", handlers.GetNotificationLogs(s.Notifications))

		admin.GET("/reports", handlers.GetReport(a.reports))
		admin.GET("/reports/export", handlers.ExportReport(a.reports))
	}
}
