package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"github.com/talesofaneria/storefront/internal/domain"
)

// DefaultEtsyBaseURL is the Etsy Open API host.
const DefaultEtsyBaseURL = "https://openapi.etsy.com"

// EtsyConfig configures the Etsy upstream.
type EtsyConfig struct {
	APIKey  string
	BaseURL string
	Locale  language.Tag
}

// Etsy fetches a shop's active listings.
type Etsy struct {
	cfg    EtsyConfig
	client *http.Client
}

// NewEtsy returns an Etsy upstream. A nil client uses NewHTTPClient(0).
func NewEtsy(cfg EtsyConfig, client *http.Client) *Etsy {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultEtsyBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Locale == language.Und {
		cfg.Locale = language.AmericanEnglish
	}
	if client == nil {
		client = NewHTTPClient(0)
	}
	return &Etsy{cfg: cfg, client: client}
}

// Name implements Upstream.
func (e *Etsy) Name() string { return SourceEtsy }

// Configured implements Upstream.
func (e *Etsy) Configured() bool { return e.cfg.APIKey != "" }

type etsyListings struct {
	Count   int           `json:"count"`
	Results []etsyListing `json:"results"`
}

type etsyListing struct {
	ListingID int64  `json:"listing_id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Quantity  int    `json:"quantity"`
	Price     struct {
		Amount       int64  `json:"amount"`
		Divisor      int64  `json:"divisor"`
		CurrencyCode string `json:"currency_code"`
	} `json:"price"`
	Images []struct {
		URL570xN     string `json:"url_570xN"`
		URLFullxFull string `json:"url_fullxfull"`
	} `json:"images"`
}

// Fetch implements Upstream; key is the shop id.
func (e *Etsy) Fetch(ctx context.Context, shopID string) ([]domain.Product, error) {
	if shopID == "" {
		return nil, errors.New("etsy: shop id is empty")
	}
	u := e.cfg.BaseURL + "/v3/application/shops/" + url.PathEscape(shopID) +
		"/listings/active?limit=100&includes=Images"
	h := http.Header{}
	h.Set("x-api-key", e.cfg.APIKey)

	var body etsyListings
	if err := getJSON(ctx, e.client, u, h, &body); err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(body.Results))
	for _, l := range body.Results {
		out = append(out, e.mapListing(l))
	}
	return out, nil
}

func (e *Etsy) mapListing(l etsyListing) domain.Product {
	img := PlaceholderImage
	if len(l.Images) > 0 {
		switch {
		case l.Images[0].URL570xN != "":
			img = l.Images[0].URL570xN
		case l.Images[0].URLFullxFull != "":
			img = l.Images[0].URLFullxFull
		}
	}
	return domain.Product{
		ID:      strconv.FormatInt(l.ListingID, 10),
		Name:    l.Title,
		Price:   FormatPrice(l.Price.Amount, l.Price.Divisor, l.Price.CurrencyCode, e.cfg.Locale),
		Image:   img,
		URL:     l.URL,
		InStock: l.Quantity > 0,
	}
}
