package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nurpe/marketplace-settlement/internal/auth"
	"github.com/nurpe/marketplace-settlement/internal/model"
	"github.com/nurpe/marketplace-settlement/internal/service"
)

const (
	profileContextKey = "profile"
	ProfileIDHeader   = "profile_id"
)

// ProfileResolver loads the acting profile by id.
type ProfileResolver interface {
	Profile(ctx context.Context, id int64) (*model.Profile, error)
}

// Profile authenticates the request and stores the acting profile in the context.
// With a signing secret configured the profile id comes from the bearer token's
// profile_id claim; without one it is taken from the profile_id header.
func Profile(parser *auth.Parser, resolver ProfileResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		profileID, ok := profileIDFromRequest(c, parser)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
			return
		}

		profile, err := resolver.Profile(c.Request.Context(), profileID)
		if err != nil {
			if errors.Is(err, service.ErrProfileNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "UNAUTHORIZED"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(profileContextKey, profile)
		c.Next()
	}
}

func profileIDFromRequest(c *gin.Context, parser *auth.Parser) (int64, bool) {
	if parser != nil && parser.Enabled() {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return 0, false
		}
		claims, err := parser.Parse(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, false
		}
		return claims.ProfileID, true
	}

	id, err := strconv.ParseInt(strings.TrimSpace(c.GetHeader(ProfileIDHeader)), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// MustProfile returns the profile stored by Profile.
func MustProfile(c *gin.Context) (*model.Profile, bool) {
	value, ok := c.Get(profileContextKey)
	if !ok {
		return nil, false
	}
	profile, ok := value.(*model.Profile)
	return profile, ok && profile != nil
}
