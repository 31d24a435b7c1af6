package political

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"callserver/internal/cache"
)

// SearchHandler exposes a basic prefix search over the political data
// cache for the admin UI's target pickers. Repeated key params widen
// the search; repeated filter params of the form field=value narrow
// the results by case-insensitive prefix match.
func (r *Registry) SearchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		country := c.DefaultQuery("country", "us")
		provider, err := r.Provider(country)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "unable to search " + country,
			})
			return
		}

		keys := c.QueryArray("key")
		if len(keys) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"status":  "error",
				"message": "no key provided",
			})
			return
		}

		var results []cache.Record
		for _, key := range keys {
			found, err := provider.CacheSearch(c.Request.Context(), key)
			if err != nil {
				r.deps.Log.Warn("political search failed", "key", key, "err", err)
				continue
			}
			for _, recs := range found {
				results = append(results, recs...)
			}
		}

		for _, f := range c.QueryArray("filter") {
			field, value, ok := strings.Cut(f, "=")
			if !ok {
				continue
			}
			value = strings.ToLower(value)
			kept := results[:0]
			for _, rec := range results {
				if strings.HasPrefix(strings.ToLower(recStr(rec, field)), value) {
					kept = append(kept, rec)
				}
			}
			results = kept
		}

		if results == nil {
			results = []cache.Record{}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "results": results})
	}
}
