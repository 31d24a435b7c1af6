package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"callserver/internal/audit"
	"callserver/internal/auth"
	"callserver/internal/blocklist"
	"callserver/internal/campaign"
	"callserver/internal/rbac"
	"callserver/internal/reporting"

	"github.com/gin-gonic/gin"
)

// Handlers groups the admin console API for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
//
// Everything here sits behind JWT auth except Login and Refresh. The
// telephony webhooks live in internal/callflow and are deliberately
// not part of this surface.

type Handlers struct {
	Auth *auth.Manager

	// AdminUser and AdminPassword are the configured console
	// credentials. Login compares against them in constant time.
	AdminUser     string
	AdminPassword string

	Campaigns campaign.Store
	Reporting *reporting.Service
	Blocklist blocklist.Store
	Audit     *audit.Service
}

/* ===================== auth ===================== */

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the configured admin credentials and issues a JWT pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}
	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.AdminUser)) == 1
	passOK := h.AdminPassword != "" &&
		subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.AdminPassword)) == 1
	if !userOK || !passOK {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.Username, rbac.RoleAdmin)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a valid refresh token for a new pair. The refresh
// token carries no role, so the new pair is re-issued as admin; the
// console only has configured admin credentials today.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), claims.UserID, rbac.RoleAdmin)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// Me echoes the authenticated identity.
func (h Handlers) Me(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "role": role})
}

/* ===================== campaigns ===================== */

// GetCampaign returns one campaign by numeric id or name.
func (h Handlers) GetCampaign(c *gin.Context) {
	if h.Campaigns == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaigns not configured"})
		return
	}
	camp, err := h.Campaigns.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}
	c.JSON(http.StatusOK, camp)
}

// CampaignStats aggregates call and session counts for one campaign.
// Optional from/to query params are RFC 3339; the default range runs
// from campaign creation to now.
func (h Handlers) CampaignStats(c *gin.Context) {
	if h.Campaigns == nil || h.Reporting == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	camp, err := h.Campaigns.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, campaign.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "campaign lookup failed"})
		return
	}

	from := camp.CreatedAt
	to := time.Now().UTC().Add(time.Second)
	if raw := c.Query("from"); raw != "" {
		from, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC 3339"})
			return
		}
	}
	if raw := c.Query("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC 3339"})
			return
		}
	}
	rng := reporting.TimeRange{From: from, To: to}

	calls, err := h.Reporting.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		CampaignID: camp.ID,
		Range:      rng,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, reporting.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		c.AbortWithStatusJSON(status, gin.H{"error": "calls summary failed"})
		return
	}
	sessions, err := h.Reporting.SessionsSummary(c.Request.Context(), reporting.SessionsSummaryRequest{
		CampaignID: camp.ID,
		Range:      rng,
	})
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sessions summary failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls, "sessions": sessions})
}

/* ===================== blocklist ===================== */

type blocklistAddRequest struct {
	PhoneNumber    string `json:"phone_number"`
	IPAddress      string `json:"ip_address"`
	ExpiresSeconds int64  `json:"expires_seconds"`
}

func (h Handlers) ListBlocklist(c *gin.Context) {
	if h.Blocklist == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist not configured"})
		return
	}
	entries, err := h.Blocklist.Active(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist read failed"})
		return
	}
	if entries == nil {
		entries = []blocklist.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h Handlers) AddBlocklistEntry(c *gin.Context) {
	if h.Blocklist == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist not configured"})
		return
	}
	var req blocklistAddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.PhoneNumber == "" && req.IPAddress == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone_number or ip_address required"})
		return
	}
	if req.ExpiresSeconds <= 0 {
		// Entries without an explicit expiry block for two weeks.
		req.ExpiresSeconds = int64((14 * 24 * time.Hour).Seconds())
	}
	entry := blocklist.Entry{
		PhoneNumber: req.PhoneNumber,
		IPAddress:   req.IPAddress,
		Expires:     time.Duration(req.ExpiresSeconds) * time.Second,
	}
	if err := h.Blocklist.Add(c.Request.Context(), &entry); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist write failed"})
		return
	}
	h.auditBlocklist(c, "blocklist entry added", entry.ID)
	c.JSON(http.StatusCreated, entry)
}

func (h Handlers) RemoveBlocklistEntry(c *gin.Context) {
	if h.Blocklist == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist not configured"})
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid entry id"})
		return
	}
	if err := h.Blocklist.Remove(c.Request.Context(), id); err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "blocklist delete failed"})
		return
	}
	h.auditBlocklist(c, "blocklist entry removed", id)
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

// auditBlocklist records the change; audit failures never fail the
// request.
func (h Handlers) auditBlocklist(c *gin.Context, message string, entryID int64) {
	if h.Audit == nil {
		return
	}
	userID, _ := auth.UserID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	_ = h.Audit.LogBlocklistChange(c.Request.Context(), userID, role, c.ClientIP(), message, entryID)
}
