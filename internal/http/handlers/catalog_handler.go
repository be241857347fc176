// Catalog HTTP handlers.
//
// Read-only endpoints over the cached external catalogs:
//   - GET /shop/etsy            (?shopId=&limit=)
//   - GET /shop/printful        (?storeId=&limit=)
//   - GET /shop/search          (?q=&limit=)
//   - GET /videos[/{playlistId}] (?limit=)
//
// Lookups never fail: an unreachable or unconfigured upstream yields cached
// data or an empty list.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/talesofaneria/storefront/internal/catalog"
	"github.com/talesofaneria/storefront/internal/domain"
	"github.com/talesofaneria/storefront/internal/services"
)

const maxListLimit = 100

// CatalogService defines the catalog lookups consumed by HTTP handlers.
type CatalogService interface {
	ShopListings(ctx context.Context, shopID string, limit int) []domain.Product
	PrintfulProducts(ctx context.Context, storeID string, limit int) []domain.Product
	PlaylistVideos(ctx context.Context, playlistID string, limit int) []domain.Video
	SearchProducts(ctx context.Context, query string, limit int) ([]services.SearchHit, error)
}

// ProductsResponse lists products of one source.
type ProductsResponse struct {
	Source   string           `json:"source" example:"etsy"`
	Products []domain.Product `json:"products"`
}

// VideosResponse lists videos of one playlist.
type VideosResponse struct {
	PlaylistID string         `json:"playlistId,omitempty"`
	Videos     []domain.Video `json:"videos"`
}

// SearchResponse lists ranked products across shops.
type SearchResponse struct {
	Query   string               `json:"query" example:"dragon dice"`
	Results []services.SearchHit `json:"results"`
}

// EtsyListings godoc
// @ID          etsyListings
// @Summary     List Etsy shop listings
// @Tags        Shop
// @Produce     json
// @Param       shopId  query  string  false "Shop ID (defaults to the configured shop)"
// @Param       limit   query  int     false "Max items (0 = all)"  minimum(0) maximum(100)
// @Success     200  {object} handlers.ProductsResponse
// @Router      /shop/etsy [get]
func (h *Handlers) EtsyListings(c *gin.Context) {
	limit := queryInt(c, "limit", 0, 0, maxListLimit)
	items := h.catalogSvc.ShopListings(c.Request.Context(), c.Query("shopId"), limit)
	ok(c, http.StatusOK, ProductsResponse{Source: catalog.SourceEtsy, Products: items})
}

// PrintfulProducts godoc
// @ID          printfulProducts
// @Summary     List Printful store products
// @Tags        Shop
// @Produce     json
// @Param       storeId  query  string  false "Store ID (defaults to the configured store)"
// @Param       limit    query  int     false "Max items (0 = all)"  minimum(0) maximum(100)
// @Success     200  {object} handlers.ProductsResponse
// @Router      /shop/printful [get]
func (h *Handlers) PrintfulProducts(c *gin.Context) {
	limit := queryInt(c, "limit", 0, 0, maxListLimit)
	items := h.catalogSvc.PrintfulProducts(c.Request.Context(), c.Query("storeId"), limit)
	ok(c, http.StatusOK, ProductsResponse{Source: catalog.SourcePrintful, Products: items})
}

// SearchProducts godoc
// @ID          searchProducts
// @Summary     Search products across shops
// @Description Ranks Etsy and Printful products by name similarity.
// @Tags        Shop
// @Produce     json
// @Param       q      query  string  true  "Search terms"
// @Param       limit  query  int     false "Max results"  minimum(1) maximum(50) default(10)
// @Success     200  {object} handlers.SearchResponse
// @Failure     400  {object} handlers.ErrorResponse
// @Router      /shop/search [get]
func (h *Handlers) SearchProducts(c *gin.Context) {
	q := c.Query("q")
	limit := queryInt(c, "limit", 10, 1, 50)
	hits, err := h.catalogSvc.SearchProducts(c.Request.Context(), q, limit)
	if errors.Is(err, services.ErrEmptyQuery) {
		fail(c, http.StatusBadRequest, ErrCodeEmptyQuery, "query parameter q is required")
		return
	}
	if err != nil {
		failInternal(c, err)
		return
	}
	ok(c, http.StatusOK, SearchResponse{Query: q, Results: hits})
}

// PlaylistVideos godoc
// @ID          playlistVideos
// @Summary     List playlist videos
// @Tags        Videos
// @Produce     json
// @Param       playlistId  path   string  true  "YouTube playlist ID"
// @Param       limit       query  int     false "Max items (0 = all)"  minimum(0) maximum(100)
// @Success     200  {object} handlers.VideosResponse
// @Router      /videos/{playlistId} [get]
func (h *Handlers) PlaylistVideos(c *gin.Context) {
	limit := queryInt(c, "limit", 0, 0, maxListLimit)
	pl := c.Param("playlistId")
	items := h.catalogSvc.PlaylistVideos(c.Request.Context(), pl, limit)
	ok(c, http.StatusOK, VideosResponse{PlaylistID: pl, Videos: items})
}
