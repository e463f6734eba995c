package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"barpos-backend/cache"
	"barpos-backend/controllers"
	"barpos-backend/middlewares"
	"barpos-backend/models"
)

func SetupRouter(db *gorm.DB, inv cache.Invalidator, baseURL string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())

	userCtrl := controllers.NewUserController(db)
	tableCtrl := controllers.NewTableController(db)
	qrCtrl := controllers.NewQRController(db, baseURL)
	guestCtrl := controllers.NewGuestController(db)
	categoryCtrl := controllers.NewMenuCategoryController(db)
	menuCtrl := controllers.NewMenuController(db)
	orderCtrl := controllers.NewOrderController(db, inv)
	cashierCtrl := controllers.NewCashierController(db, inv)
	invoiceCtrl := controllers.NewInvoiceController(db)

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------

	// Login and guest onboarding get the strict limiter.
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/login", userCtrl.Login)
		public.POST("/guests/register", guestCtrl.RegisterGuest)
	}

	// Guest-facing, authenticated via opaque session credential.
	r.GET("/session", guestCtrl.GetSession)
	r.POST("/session/touch", guestCtrl.TouchSession)
	r.GET("/categories", categoryCtrl.GetAllCategories)
	r.GET("/menus", menuCtrl.GetAllMenus)
	r.GET("/menus/by-category", menuCtrl.GetMenuByCategory)
	r.POST("/order-items", orderCtrl.AddItemGuest)

	// ----------------------------------------------------------------
	//                      STAFF ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/admin")
	auth.Use(middlewares.AuthMiddleware())

	auth.POST("/register", middlewares.RequireRoles(models.RoleAdmin), userCtrl.Register)
	auth.POST("/logout", userCtrl.Logout)
	auth.GET("/profile", userCtrl.GetProfile)
	auth.GET("/users", userCtrl.GetAllUsers)

	// TABLES
	auth.GET("/tables", tableCtrl.GetAllTables)
	auth.GET("/tables/by-status", tableCtrl.FindTablesByStatus)
	auth.POST("/tables", tableCtrl.CreateTable)
	auth.GET("/tables/:table_id", tableCtrl.GetTableByID)
	auth.POST("/tables/:table_id/occupy", tableCtrl.OccupyTable)
	auth.DELETE("/tables/:table_id", tableCtrl.DeleteTable)

	// QR SESSIONS
	auth.POST("/tables/:table_id/qr", qrCtrl.GenerateQR)
	auth.DELETE("/tables/:table_id/qr", qrCtrl.RetireQR)

	// GUESTS
	auth.POST("/tables/:table_id/guests", guestCtrl.RegisterGuestManual)
	auth.GET("/tables/:table_id/guests", cashierCtrl.GetTableGuests)

	// MENU CATEGORIES
	auth.POST("/categories", categoryCtrl.CreateCategory)
	auth.PATCH("/categories/:cat_id", categoryCtrl.UpdateCategory)
	auth.DELETE("/categories/:cat_id", categoryCtrl.DeleteCategory)

	// MENUS
	auth.GET("/menus", menuCtrl.GetAllMenus)
	auth.POST("/menus", menuCtrl.CreateMenu)
	auth.GET("/menus/:menu_id", menuCtrl.GetMenuByID)
	auth.PATCH("/menus/:menu_id", menuCtrl.UpdateMenu)
	auth.DELETE("/menus/:menu_id", menuCtrl.DeleteMenu)

	// ORDERS
	auth.GET("/orders", orderCtrl.GetActiveOrders)
	auth.POST("/orders", orderCtrl.CreateOrder)
	auth.GET("/orders/:order_id", orderCtrl.GetOrderByID)
	auth.POST("/orders/:order_id/items", orderCtrl.AddItem)
	auth.POST("/orders/:order_id/items/:item_id/decrease", orderCtrl.DecreaseItem)
	auth.DELETE("/orders/:order_id/items/:item_id", orderCtrl.RemoveItem)
	auth.PATCH("/orders/:order_id/items/:item_id/notes", orderCtrl.UpdateItemNotes)
	auth.PATCH("/orders/:order_id/notes", orderCtrl.UpdateOrderNotes)
	auth.POST("/orders/:order_id/close", orderCtrl.CloseOrder)

	// SETTLEMENT (cashier or admin)
	settle := auth.Group("/")
	settle.Use(middlewares.RequireRoles(models.RoleAdmin, models.RoleCashier))
	{
		settle.POST("/payments", cashierCtrl.RegisterPayment)
		settle.POST("/payments/guest", cashierCtrl.RegisterGuestPayment)
	}

	// INVOICES
	auth.GET("/invoices/:invoice_id", invoiceCtrl.GetInvoiceByID)
	auth.GET("/invoices/:invoice_id/pdf", invoiceCtrl.GetInvoicePDF)
	auth.GET("/orders/:order_id/invoices", invoiceCtrl.GetInvoicesByOrder)

	// WebSocket fan-out for staff dashboards.
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.AuthMiddleware(), middlewares.RoleCheck())
	{
		wsGroup.GET("/:role", controllers.EventsHandler)
	}

	return r
}
