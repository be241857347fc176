package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/talesofaneria/storefront/internal/domain"
)

// DefaultPrintfulBaseURL is the Printful API host.
const DefaultPrintfulBaseURL = "https://api.printful.com"

// printfulDetailWorkers bounds concurrent per-product detail requests.
const printfulDetailWorkers = 4

// PrintfulConfig configures the Printful upstream.
type PrintfulConfig struct {
	Token   string
	BaseURL string
	// ProductURLBase is joined with the product id to build the storefront
	// link, e.g. "https://talesofaneria.com/shop/product" + "/123".
	ProductURLBase string
	Locale         language.Tag
}

// Printful fetches a store's sync products and prices them from their
// variants.
type Printful struct {
	cfg    PrintfulConfig
	client *http.Client
}

// NewPrintful returns a Printful upstream. A nil client uses NewHTTPClient(0).
func NewPrintful(cfg PrintfulConfig, client *http.Client) *Printful {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultPrintfulBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.ProductURLBase = strings.TrimRight(cfg.ProductURLBase, "/")
	if cfg.Locale == language.Und {
		cfg.Locale = language.AmericanEnglish
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Printful{cfg: cfg, client: client}
}

// Name implements Upstream.
func (p *Printful) Name() string { return SourcePrintful }

// Configured implements Upstream.
func (p *Printful) Configured() bool { return p.cfg.Token != "" }

type printfulProductList struct {
	Result []printfulSyncProduct `json:"result"`
	Paging struct {
		Total  int `json:"total"`
		Offset int `json:"offset"`
		Limit  int `json:"limit"`
	} `json:"paging"`
}

type printfulSyncProduct struct {
	ID           int64  `json:"id"`
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	ThumbnailURL string `json:"thumbnail_url"`
	IsIgnored    bool   `json:"is_ignored"`
}

type printfulProductDetail struct {
	Result struct {
		SyncProduct  printfulSyncProduct   `json:"sync_product"`
		SyncVariants []printfulSyncVariant `json:"sync_variants"`
	} `json:"result"`
}

type printfulSyncVariant struct {
	ID                 int64  `json:"id"`
	RetailPrice        string `json:"retail_price"`
	Currency           string `json:"currency"`
	AvailabilityStatus string `json:"availability_status"`
	Files              []struct {
		Type       string `json:"type"`
		PreviewURL string `json:"preview_url"`
	} `json:"files"`
}

// Fetch implements Upstream; key is the store id (sent as X-PF-Store-Id when
// not empty).
func (p *Printful) Fetch(ctx context.Context, storeID string) ([]domain.Product, error) {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+p.cfg.Token)
	if storeID != "" {
		h.Set("X-PF-Store-Id", storeID)
	}

	list, err := p.listProducts(ctx, h)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Product, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(printfulDetailWorkers)
	for i, sp := range list {
		g.Go(func() error {
			var d printfulProductDetail
			u := p.cfg.BaseURL + "/store/products/" + strconv.FormatInt(sp.ID, 10)
			if err := getJSON(gctx, p.client, u, h, &d); err != nil {
				return fmt.Errorf("printful product %d: %w", sp.ID, err)
			}
			out[i] = p.mapProduct(sp, d.Result.SyncVariants)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Printful) listProducts(ctx context.Context, h http.Header) ([]printfulSyncProduct, error) {
	var all []printfulSyncProduct
	offset := 0
	for {
		var page printfulProductList
		u := p.cfg.BaseURL + "/store/products?limit=100&offset=" + strconv.Itoa(offset)
		if err := getJSON(ctx, p.client, u, h, &page); err != nil {
			return nil, err
		}
		for _, sp := range page.Result {
			if !sp.IsIgnored {
				all = append(all, sp)
			}
		}
		offset += len(page.Result)
		if len(page.Result) == 0 || offset >= page.Paging.Total {
			return all, nil
		}
	}
}

func (p *Printful) mapProduct(sp printfulSyncProduct, variants []printfulSyncVariant) domain.Product {
	var (
		lowest   decimal.Decimal
		currency = "USD"
		priced   bool
		inStock  bool
	)
	img := sp.ThumbnailURL
	for _, v := range variants {
		if amt, ok := ParseAmount(v.RetailPrice); ok && (!priced || amt.LessThan(lowest)) {
			lowest, priced = amt, true
			if v.Currency != "" {
				currency = v.Currency
			}
		}
		if printfulAvailable(v.AvailabilityStatus) {
			inStock = true
		}
		if img == "" {
			for _, f := range v.Files {
				if f.Type == "preview" && f.PreviewURL != "" {
					img = f.PreviewURL
					break
				}
			}
		}
	}
	if img == "" {
		img = PlaceholderImage
	}

	id := strconv.FormatInt(sp.ID, 10)
	prod := domain.Product{
		ID:      id,
		Name:    sp.Name,
		Price:   FormatAmount(lowest, currency, p.cfg.Locale),
		Image:   img,
		InStock: inStock,
	}
	if p.cfg.ProductURLBase != "" {
		prod.URL = p.cfg.ProductURLBase + "/" + id
	}
	return prod
}

// printfulAvailable reports whether a variant availability status means the
// variant can be ordered. An empty status counts as available.
func printfulAvailable(status string) bool {
	switch status {
	case "discontinued", "out_of_stock", "temporary_out_of_stock":
		return false
	default:
		return true
	}
}
