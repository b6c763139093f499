// Package directory implements the HTTP clients for the remote user and
// product services. Calls are synchronous and carry no retry logic of
// their own; transport failures and 5xx responses surface as
// domain.ErrDirectoryUnavailable so the assembler can defer the request.
package directory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/playdata/microshop/internal/ordering/domain"
	"github.com/playdata/microshop/pkg/envelope"
)

type UserClient struct {
	log  *slog.Logger
	base string
	hc   *http.Client
}

func NewUserClient(log *slog.Logger, baseURL string, timeout time.Duration) *UserClient {
	return &UserClient{
		log:  log,
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
}

// FetchUserByEmail resolves a buyer in the user service.
func (c *UserClient) FetchUserByEmail(ctx context.Context, email string) (domain.RemoteUser, error) {
	u := c.base + "/user/findByEmail?email=" + url.QueryEscape(email)
	body, status, err := get(ctx, c.hc, u)
	if err != nil {
		c.log.Warn("user directory unreachable", "err", err)
		return domain.RemoteUser{}, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	switch {
	case status == http.StatusNotFound:
		return domain.RemoteUser{}, domain.ErrBuyerNotFound
	case status >= 500:
		return domain.RemoteUser{}, fmt.Errorf("%w: user directory returned %d", domain.ErrDirectoryUnavailable, status)
	case status != http.StatusOK:
		return domain.RemoteUser{}, fmt.Errorf("user directory returned %d", status)
	}

	var user domain.RemoteUser
	if err := envelope.Decode(body, &user); err != nil {
		return domain.RemoteUser{}, fmt.Errorf("decoding user directory response: %w", err)
	}
	return user, nil
}

type ProductClient struct {
	log  *slog.Logger
	base string
	hc   *http.Client
}

func NewProductClient(log *slog.Logger, baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{
		log:  log,
		base: strings.TrimRight(baseURL, "/"),
		hc:   &http.Client{Timeout: timeout},
	}
}

// FetchProduct reads current product state, one call per order line.
func (c *ProductClient) FetchProduct(ctx context.Context, id int64) (domain.RemoteProduct, error) {
	u := fmt.Sprintf("%s/product/%d", c.base, id)
	body, status, err := get(ctx, c.hc, u)
	if err != nil {
		c.log.Warn("product directory unreachable", "err", err)
		return domain.RemoteProduct{}, fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	switch {
	case status == http.StatusNotFound:
		return domain.RemoteProduct{}, domain.ErrProductNotFound
	case status >= 500:
		return domain.RemoteProduct{}, fmt.Errorf("%w: product directory returned %d", domain.ErrDirectoryUnavailable, status)
	case status != http.StatusOK:
		return domain.RemoteProduct{}, fmt.Errorf("product directory returned %d", status)
	}

	var p domain.RemoteProduct
	if err := envelope.Decode(body, &p); err != nil {
		return domain.RemoteProduct{}, fmt.Errorf("decoding product directory response: %w", err)
	}
	return p, nil
}

// AdjustStock writes an absolute stock quantity, form-encoded per the
// product service contract. There is no version check on the remote side:
// concurrent adjusters racing on the same product last-write-win.
func (c *ProductClient) AdjustStock(ctx context.Context, id int64, newQuantity int) error {
	form := url.Values{}
	form.Set("productId", strconv.FormatInt(id, 10))
	form.Set("stockQuantity", strconv.Itoa(newQuantity))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.base+"/product/updateQuantity", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn("stock adjust unreachable", "product_id", id, "err", err)
		return fmt.Errorf("%w: %v", domain.ErrDirectoryUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: stock adjust returned %d", domain.ErrDirectoryUnavailable, resp.StatusCode)
	}
	return nil
}

func get(ctx context.Context, hc *http.Client, u string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
