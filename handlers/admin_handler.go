package handlers

import (
	"net/http"

	"oneworld-backend/cache"
	"oneworld-backend/middleware"
	"oneworld-backend/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminHandler serves the server-rendered admin panel and its session API.
type AdminHandler struct {
	db       *gorm.DB
	sessions *cache.SessionStore
}

// NewAdminHandler wires the user store and the session store.
func NewAdminHandler(db *gorm.DB, sessions *cache.SessionStore) *AdminHandler {
	return &AdminHandler{db: db, sessions: sessions}
}

func (h *AdminHandler) hasSession(c *gin.Context) bool {
	token, _ := c.Cookie(middleware.SessionCookieName)
	_, ok := h.sessions.Get(c.Request.Context(), token)
	return ok
}

// Index redirects to the dashboard or the login page.
func (h *AdminHandler) Index(c *gin.Context) {
	if h.hasSession(c) {
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}
	c.Redirect(http.StatusFound, "/admin/login")
}

// LoginPage renders the login form; logged-in admins go straight to the
// dashboard.
func (h *AdminHandler) LoginPage(c *gin.Context) {
	if h.hasSession(c) {
		c.Redirect(http.StatusFound, "/admin/dashboard")
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"Title": "One World Admin"})
}

// AdminLoginInput is the admin login body.
type AdminLoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// HandleLogin verifies admin credentials and opens a session.
func (h *AdminHandler) HandleLogin(c *gin.Context) {
	var input AdminLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	var user models.User
	err := h.db.WithContext(c.Request.Context()).
		Where("email = ? AND role = ?", input.Email, models.RoleAdmin).
		First(&user).Error
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.sessions.Create(c.Request.Context(), cache.AdminSession{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.SetCookie(middleware.SessionCookieName, token,
		int(cache.SessionTTL.Seconds()), "/admin", "", false, true)
	c.JSON(http.StatusOK, gin.H{"message": "Login successful", "redirect": "/admin/dashboard"})
}

// HandleLogout destroys the session and clears the cookie.
func (h *AdminHandler) HandleLogout(c *gin.Context) {
	token, _ := c.Cookie(middleware.SessionCookieName)
	h.sessions.Destroy(c.Request.Context(), token)
	c.SetCookie(middleware.SessionCookieName, "", -1, "/admin", "", false, true)

	if c.Request.Method == http.MethodGet {
		c.Redirect(http.StatusFound, "/admin/login")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// CurrentAdmin returns the logged-in admin's session data.
func (h *AdminHandler) CurrentAdmin(c *gin.Context) {
	session, ok := middleware.CurrentAdminSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": session})
}

// Dashboard renders the admin dashboard.
func (h *AdminHandler) Dashboard(c *gin.Context) {
	session, _ := middleware.CurrentAdminSession(c)
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Title":   "Dashboard",
		"Session": session,
	})
}

// VotingsPage renders the voting management page.
func (h *AdminHandler) VotingsPage(c *gin.Context) {
	session, _ := middleware.CurrentAdminSession(c)
	c.HTML(http.StatusOK, "votings.html", gin.H{
		"Title":   "Votings",
		"Session": session,
	})
}

// SettingsPage renders the settings management page.
func (h *AdminHandler) SettingsPage(c *gin.Context) {
	session, _ := middleware.CurrentAdminSession(c)
	c.HTML(http.StatusOK, "settings.html", gin.H{
		"Title":   "Settings",
		"Session": session,
	})
}
