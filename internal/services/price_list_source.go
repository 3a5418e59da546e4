// internal/services/price_list_source.go
package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/javajoker/retail-backend/internal/config"
	"github.com/javajoker/retail-backend/internal/utils"
)

// PriceListFetcher retrieves a price-list document from its external location.
type PriceListFetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type PriceListSource struct {
	client  *resty.Client
	storage *StorageService
	maxSize int64
}

func NewPriceListSource(cfg config.IngestionConfig, storage *StorageService) *PriceListSource {
	client := resty.New().
		SetTimeout(cfg.FetchTimeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetHeader("User-Agent", "retail-backend/1.0").
		SetHeader("Accept", "application/yaml, application/x-yaml, text/yaml, application/json, */*")

	return &PriceListSource{
		client:  client,
		storage: storage,
		maxSize: cfg.MaxDocumentSize,
	}
}

// ValidateSourceURL accepts http(s) and s3 locations.
func ValidateSourceURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return nil, &PriceListError{Fields: []utils.ValidationError{{
			Field: "url", Tag: "url", Message: "url must be an absolute http, https or s3 URL",
		}}}
	}

	switch u.Scheme {
	case "http", "https":
		return u, nil
	case "s3":
		if strings.Trim(u.Path, "/") == "" {
			return nil, &PriceListError{Fields: []utils.ValidationError{{
				Field: "url", Tag: "url", Message: "s3 url must name an object key",
			}}}
		}
		return u, nil
	default:
		return nil, &PriceListError{Fields: []utils.ValidationError{{
			Field: "url", Tag: "url", Message: fmt.Sprintf("unsupported url scheme %q", u.Scheme),
		}}}
	}
}

func (f *PriceListSource) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := ValidateSourceURL(rawURL)
	if err != nil {
		return nil, err
	}

	if u.Scheme == "s3" {
		if f.storage == nil {
			return nil, fmt.Errorf("%w: S3 storage not configured", ErrTransportFailure)
		}
		return f.storage.Download(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
	}

	resp, err := f.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to fetch %s: %v", ErrTransportFailure, u.Redacted(), err)
	}

	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("%w: %s returned %s", ErrTransportFailure, u.Redacted(), resp.Status())
	}

	return readLimited(body, f.maxSize)
}
