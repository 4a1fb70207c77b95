// Resource directory HTTP handlers.
//
// This file exposes the read-only support-service directory:
//   - GET /resources   (hotlines and county services, filterable)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/domain"
	"github.com/Wa1r1muKariuki/Vee-GBV-Reporting-Platform/internal/resources"
)

// ResourceDirectory defines the directory lookup consumed by HTTP handlers.
type ResourceDirectory interface {
	// Lookup returns contacts for a county and need category, either may be
	// empty. National hotlines always lead the result.
	Lookup(county, category string) []resources.Contact
}

// ResourcesResponse wraps a directory lookup result.
type ResourcesResponse struct {
	Resources []resources.Contact `json:"resources"`
	Count     int                 `json:"count"`
}

// ListResources godoc
// @ID          listResources
// @Summary     List support services
// @Description Returns national hotlines plus county-level services, optionally filtered by county and category.
// @Tags        Resources
// @Produce     json
//
// @Param       county    query  string  false  "County name"     example(Nairobi)
// @Param       category  query  string  false  "Need category"   Enums(emergency, medical, legal, counseling, shelter)
//
// @Success     200  {object}  handlers.ResourcesResponse
// @Router      /resources [get]
func (h *Handlers) ListResources(c *gin.Context) {
	county := strings.TrimSpace(c.Query("county"))
	if county != "" {
		// Unknown county names fall back to national hotlines only.
		if canonical, valid := domain.NormalizeCounty(county); valid {
			county = canonical
		} else {
			county = ""
		}
	}

	contacts := h.dir.Lookup(county, c.Query("category"))
	ok(c, http.StatusOK, ResourcesResponse{Resources: contacts, Count: len(contacts)})
}
