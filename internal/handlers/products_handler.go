package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tesoroschoco/marketplace-api/internal/products"
)

// registerProductRoutes mounts the public catalog: active products only.
func registerProductRoutes(r *gin.Engine, d *deps) {
	r.GET("/products", func(c *gin.Context) {
		list, err := d.products.ListActive(c.Request.Context(), c.Query("search"), c.Query("category"))
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load products")
			return
		}
		if list == nil {
			list = []products.Product{}
		}
		c.JSON(http.StatusOK, gin.H{"products": list, "count": len(list)})
	})

	r.GET("/products/:id", func(c *gin.Context) {
		p, err := d.products.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "could not load product")
			return
		}
		if p == nil || !p.IsActive {
			respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", "product not found")
			return
		}
		c.JSON(http.StatusOK, gin.H{"product": p})
	})
}
