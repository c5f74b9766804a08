package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/storefrontlab/storefront-api/internal/common"
	"github.com/storefrontlab/storefront-api/internal/pricing"
)

// ErrNotFound indicates the requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	InStock  *bool
	Sort     string
	Page     int
	Limit    int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []Product
	Total int64
	Page  int
	Limit int
}

// Service orchestrates catalog queries, parameter parsing, and caching.
type Service struct {
	store        Store
	cache        *Cache
	defaultLimit int
	maxLimit     int
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store        Store
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	defaultLimit := cfg.DefaultLimit
	if defaultLimit < 1 {
		defaultLimit = 20
	}
	maxLimit := cfg.MaxLimit
	if maxLimit < 1 {
		maxLimit = 100
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Service{
		store:        cfg.Store,
		cache:        cfg.Cache,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}, nil
}

// ParseListParams normalises raw query values into strongly typed filters.
func (s *Service) ParseListParams(values url.Values) (ListParams, error) {
	params := ListParams{
		Page:  1,
		Limit: s.defaultLimit,
		Sort:  "newest",
	}
	params.Query = strings.TrimSpace(values.Get("q"))
	params.Category = strings.TrimSpace(values.Get("category"))

	if v := strings.TrimSpace(values.Get("page")); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, badRequest("page", "page must be a positive integer", err)
		}
		params.Page = page
	}
	if v := strings.TrimSpace(values.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return params, badRequest("limit", "limit must be a positive integer", err)
		}
		params.Limit = limit
	}
	if params.Limit > s.maxLimit {
		params.Limit = s.maxLimit
	}

	if v := strings.TrimSpace(values.Get("minPrice")); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || parsed.IsNegative() {
			return params, badRequest("minPrice", "minPrice must be a non-negative number", err)
		}
		params.MinPrice = &parsed
	}
	if v := strings.TrimSpace(values.Get("maxPrice")); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil || parsed.IsNegative() {
			return params, badRequest("maxPrice", "maxPrice must be a non-negative number", err)
		}
		params.MaxPrice = &parsed
	}
	if params.MinPrice != nil && params.MaxPrice != nil && params.MinPrice.GreaterThan(*params.MaxPrice) {
		return params, badRequest("price", "minPrice cannot be greater than maxPrice", errors.New("invalid price range"))
	}

	if v := strings.TrimSpace(values.Get("inStock")); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return params, badRequest("inStock", "inStock must be a boolean", err)
		}
		params.InStock = &parsed
	}

	if v := strings.TrimSpace(values.Get("sort")); v != "" {
		if _, ok := sortClauses[v]; !ok {
			return params, badRequest("sort", "unsupported sort value", nil)
		}
		params.Sort = v
	}
	return params, nil
}

// ListProducts returns a filtered product page, consulting the cache first.
func (s *Service) ListProducts(ctx context.Context, params ListParams) (ListResult, error) {
	key := listCacheKey(params)
	var cached ListResult
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	items, total, err := s.store.List(ctx, params)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: items, Total: total, Page: params.Page, Limit: params.Limit}
	_ = s.cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetProduct loads a product by slug, consulting the cache first.
func (s *Service) GetProduct(ctx context.Context, slug string) (Product, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return Product{}, badRequest("slug", "slug is required", nil)
	}
	key := "catalog:v1:product:" + slug
	var cached Product
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	product, err := s.store.BySlug(ctx, slug)
	if err != nil {
		return Product{}, err
	}
	_ = s.cache.SetJSON(ctx, key, product)
	return product, nil
}

// Categories lists distinct categories, consulting the cache first.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	key := "catalog:v1:categories"
	var cached []string
	if hit, err := s.cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.cache.SetJSON(ctx, key, categories)
	return categories, nil
}

// ProductByID resolves a pricing snapshot for the cart and checkout flows.
// Snapshots bypass the cache so quantities and prices are always current.
func (s *Service) ProductByID(ctx context.Context, id string) (pricing.Product, error) {
	product, err := s.store.ByID(ctx, id)
	if err != nil {
		return pricing.Product{}, err
	}
	return product.Pricing(), nil
}

func listCacheKey(params ListParams) string {
	minPrice, maxPrice, inStock := "", "", ""
	if params.MinPrice != nil {
		minPrice = params.MinPrice.String()
	}
	if params.MaxPrice != nil {
		maxPrice = params.MaxPrice.String()
	}
	if params.InStock != nil {
		inStock = strconv.FormatBool(*params.InStock)
	}
	return fmt.Sprintf("catalog:v1:list:q=%s&c=%s&min=%s&max=%s&stock=%s&sort=%s&p=%d&l=%d",
		params.Query, params.Category, minPrice, maxPrice, inStock, params.Sort, params.Page, params.Limit)
}

func badRequest(field, message string, err error) *common.AppError {
	appErr := common.NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err)
	appErr.Details = map[string]string{"field": field}
	return appErr
}
